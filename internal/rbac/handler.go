package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/shared"
)

// Handler exposes the administrative RBAC surface: the permission catalog,
// role management, user grant assignment and the check/explain endpoints.
type Handler struct {
	logger  *slog.Logger
	catalog *Catalog
	service *Service
	audit   *shared.AuditLogger
	mw      Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog, service *Service, audit *shared.AuditLogger, mw Middleware) *Handler {
	return &Handler{logger: logger, catalog: catalog, service: service, audit: audit, mw: mw}
}

// MountRoutes registers RBAC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.PermManageRBAC))

		r.Get("/permissions", h.listPermissions)
		r.Get("/permissions/search", h.searchPermissions)
		r.Post("/permissions", h.createPermission)
		r.Get("/permissions/{id}", h.getPermission)
		r.Patch("/permissions/{id}", h.updatePermission)
		r.Delete("/permissions/{id}", h.deletePermission)

		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Get("/roles/{id}", h.getRole)
		r.Patch("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Put("/roles/{id}/permissions", h.setRolePermissions)
		r.Post("/roles/{id}/permissions", h.attachRolePermissions)

		r.Put("/users/{id}/roles", h.setUserRoles)
		r.Put("/users/{id}/permissions", h.setUserCustomPermissions)
	})

	// Self-readable: a user may inspect their own grants, admins anyone's.
	r.Get("/users/{id}/effective-permissions", h.effectivePermissions)
	r.Get("/users/{id}/check", h.checkPermission)
	r.Post("/users/{id}/check", h.checkPermissionsBatch)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) searchPermissions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	matches := make([]Permission, 0, limit)
	for perm, err := range h.catalog.Search(r.Context(), query, limit) {
		if err != nil {
			h.logger.Error("search permissions", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		matches = append(matches, perm)
	}
	httpx.JSON(w, http.StatusOK, matches)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in CreatePermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	perm, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.create", "permission", perm.ID, nil)
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var in UpdatePermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	id := chi.URLParam(r, "id")
	perm, err := h.catalog.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.update", "permission", id, nil)
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.delete", "permission", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in CreateRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.create", "role", role.ID, nil)
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type updateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var in updateRoleRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if fields := shared.ValidateStruct(in); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	id := chi.URLParam(r, "id")
	role, err := h.service.UpdateRole(r.Context(), id, in.Name, in.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.update", "role", id, nil)
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.delete", "role", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type rolePermissionsRequest struct {
	Permissions []PermissionRef `json:"permissions"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	var in rolePermissionsRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	id := chi.URLParam(r, "id")
	role, err := h.service.SetRolePermissions(r.Context(), id, in.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.set_permissions", "role", id, map[string]any{"count": len(role.Permissions)})
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) attachRolePermissions(w http.ResponseWriter, r *http.Request) {
	var in rolePermissionsRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	id := chi.URLParam(r, "id")
	role, err := h.service.AttachRolePermissions(r.Context(), id, in.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.attach_permissions", "role", id, map[string]any{"count": len(role.Permissions)})
	httpx.JSON(w, http.StatusOK, role)
}

type userRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) setUserRoles(w http.ResponseWriter, r *http.Request) {
	var in userRolesRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.SetUserRoles(r.Context(), id, in.Roles); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "user.set_roles", "user", id, map[string]any{"roles": in.Roles})
	w.WriteHeader(http.StatusNoContent)
}

type userPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) setUserCustomPermissions(w http.ResponseWriter, r *http.Request) {
	var in userPermissionsRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.SetUserCustomPermissions(r.Context(), id, in.Permissions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "user.set_custom_permissions", "user", id, map[string]any{"permissions": in.Permissions})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOrAdmin(w, r, id); err != nil {
		return
	}
	eff, err := h.service.EffectivePermissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eff)
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOrAdmin(w, r, id); err != nil {
		return
	}
	permID := r.URL.Query().Get("permission")
	if permID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission query parameter required")
		return
	}
	decision, err := h.service.CheckPermission(r.Context(), id, permID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

type batchCheckRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (h *Handler) checkPermissionsBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOrAdmin(w, r, id); err != nil {
		return
	}
	var in batchCheckRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	decisions, err := h.service.CheckPermissionsBatch(r.Context(), id, in.PermissionIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decisions)
}

// requireSelfOrAdmin writes the error response itself and returns non-nil
// when the caller may not inspect the target user's grants.
func (h *Handler) requireSelfOrAdmin(w http.ResponseWriter, r *http.Request, targetUserID string) error {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return httpx.ErrUnauthorized
	}
	if err := h.service.AdminOrOwner(r.Context(), principal.ID, targetUserID, shared.PermAdminAccess); err != nil {
		httpx.RespondError(w, err)
		return err
	}
	return nil
}

func (h *Handler) recordAudit(r *http.Request, action, entity, entityID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  principal.ID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && h.logger != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
