package listings

import (
	"log/slog"
	"net/http"
	"strconv"

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
	r.Route("/listings", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.mw.RequirePermission(shared.PermViewListings))
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
		})
		r.With(h.mw.RequirePermission(shared.PermCreateListings)).Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.With(h.mw.RequirePermission(shared.PermPublishListings)).Post("/{id}/publish", h.publish)
		r.Post("/{id}/sold", h.markSold)
		r.Post("/{id}/archive", h.archive)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 25, 100)
	q := r.URL.Query()
	req := ListListingsRequest{
		Search:   q.Get("search"),
		SellerID: q.Get("seller_id"),
		Status:   q.Get("status"),
		Make:     q.Get("make"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if v, err := strconv.Atoi(q.Get("year_min")); err == nil {
		req.YearMin = v
	}
	if v, err := strconv.Atoi(q.Get("year_max")); err == nil {
		req.YearMax = v
	}
	if v, err := strconv.ParseInt(q.Get("price_max"), 10, 64); err == nil {
		req.PriceMax = v
	}
	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, items, total, req.Limit, req.Offset)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listing)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
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
	listing, err := h.service.Create(r.Context(), principal.ID, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "listing.create", listing.ID, map[string]any{"seller_id": listing.SellerID})
	httpx.JSON(w, http.StatusCreated, listing)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateListingRequest
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
	listing, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "listing.update", id, nil)
	httpx.JSON(w, http.StatusOK, listing)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeOwner(w, r, id); err != nil {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "listing.delete", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeOwner(w, r, id); err != nil {
		return
	}
	listing, err := h.service.Publish(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "listing.publish", id, nil)
	httpx.JSON(w, http.StatusOK, listing)
}

func (h *Handler) markSold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeOwner(w, r, id); err != nil {
		return
	}
	listing, err := h.service.MarkSold(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "listing.sold", id, nil)
	httpx.JSON(w, http.StatusOK, listing)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeOwner(w, r, id); err != nil {
		return
	}
	listing, err := h.service.Archive(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "listing.archive", id, nil)
	httpx.JSON(w, http.StatusOK, listing)
}

// authorizeOwner applies the admin-or-owner rule against the listing's
// owning user. The response is already written on error.
func (h *Handler) authorizeOwner(w http.ResponseWriter, r *http.Request, listingID string) error {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return httpx.ErrUnauthorized
	}
	listing, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		httpx.RespondError(w, err)
		return err
	}
	if err := h.rbacSvc.AdminOrOwner(r.Context(), principal.ID, listing.OwnerUserID, shared.PermAdminAccess); err != nil {
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
		Entity:   "listing",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && h.logger != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
