package sellers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/rbac"
	"github.com/motorlot/motorlot/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbacSvc *rbac.Service
	audit   *shared.AuditLogger
	mw      *rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbacSvc *rbac.Service, audit *shared.AuditLogger, mw *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbacSvc: rbacSvc, audit: audit, mw: mw}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sellers", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.mw.RequirePermission(shared.PermViewSellers))
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
		})
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.deactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 25, 100)
	req := ListSellersRequest{
		Search:      r.URL.Query().Get("search"),
		Kind:        r.URL.Query().Get("kind"),
		Region:      r.URL.Query().Get("region"),
		OwnerUserID: r.URL.Query().Get("owner_user_id"),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}
	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, items, total, req.Limit, req.Offset)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	seller, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, seller)
}

// create lets a user register their own seller profile; registering one
// for somebody else takes the admin permission.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSellerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.rbacSvc.AdminOrOwner(r.Context(), principal.ID, req.OwnerUserID, shared.PermManageSellers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	seller, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "seller.create", seller.ID, map[string]any{"owner_user_id": seller.OwnerUserID})
	httpx.JSON(w, http.StatusCreated, seller)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateSellerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	if err := h.authorizeOwner(w, r, id); err != nil {
		return
	}
	seller, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "seller.update", id, nil)
	httpx.JSON(w, http.StatusOK, seller)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeOwner(w, r, id); err != nil {
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "seller.deactivate", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// authorizeOwner resolves the seller and applies the admin-or-owner rule
// against its owning user. The response is already written on error.
func (h *Handler) authorizeOwner(w http.ResponseWriter, r *http.Request, sellerID string) error {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return httpx.ErrUnauthorized
	}
	seller, err := h.service.Get(r.Context(), sellerID)
	if err != nil {
		httpx.RespondError(w, err)
		return err
	}
	if err := h.rbacSvc.AdminOrOwner(r.Context(), principal.ID, seller.OwnerUserID, shared.PermManageSellers); err != nil {
		httpx.RespondError(w, err)
		return err
	}
	return nil
}

func (h *Handler) recordAudit(r *http.Request, action, entityID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	principal, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  principal.ID,
		Action:   action,
		Entity:   "seller",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && h.logger != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
