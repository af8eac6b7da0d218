package subscriptions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/rbac"
	"github.com/motorlot/motorlot/internal/shared"
)

// OwnerLookup resolves a seller's owning user id for the admin-or-owner
// rule. Wired to the sellers service at startup.
type OwnerLookup func(ctx context.Context, sellerID string) (string, error)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbacSvc *rbac.Service
	audit   *shared.AuditLogger
	mw      *rbac.Middleware
	ownerOf OwnerLookup
}

func NewHandler(logger *slog.Logger, service *Service, rbacSvc *rbac.Service, audit *shared.AuditLogger, mw *rbac.Middleware, ownerOf OwnerLookup) *Handler {
	return &Handler{logger: logger, service: service, rbacSvc: rbacSvc, audit: audit, mw: mw, ownerOf: ownerOf}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.listPlans)
		r.Group(func(r chi.Router) {
			r.Use(h.mw.RequirePermission(shared.PermManagePlans))
			r.Post("/", h.createPlan)
			r.Put("/{id}", h.updatePlan)
		})
	})
	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.subscribe)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
		r.Get("/seller/{sellerID}", h.listForSeller)
	})
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	plans, err := h.service.ListPlans(r.Context(), activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plans)
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	plan, err := h.service.CreatePlan(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "plan.create", plan.ID, map[string]any{"code": plan.Code})
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePlanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	plan, err := h.service.UpdatePlan(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "plan.update", id, nil)
	httpx.JSON(w, http.StatusOK, plan)
}

type subscribeResponse struct {
	Subscription *Subscription    `json:"subscription"`
	Invoice      *billing.Invoice `json:"invoice"`
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	if err := h.authorizeSeller(w, r, req.SellerID); err != nil {
		return
	}
	sub, invoice, err := h.service.Subscribe(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "subscription.create", sub.ID, map[string]any{"seller_id": sub.SellerID, "plan_id": sub.PlanID})
	httpx.JSON(w, http.StatusCreated, subscribeResponse{Subscription: sub, Invoice: invoice})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.authorizeSeller(w, r, sub.SellerID); err != nil {
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.authorizeSeller(w, r, sub.SellerID); err != nil {
		return
	}
	canceled, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "subscription.cancel", id, nil)
	httpx.JSON(w, http.StatusOK, canceled)
}

func (h *Handler) listForSeller(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if err := h.authorizeSeller(w, r, sellerID); err != nil {
		return
	}
	subs, err := h.service.ListForSeller(r.Context(), sellerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subs)
}

// authorizeSeller resolves the seller's owner and applies admin-or-owner.
// The response is already written on error.
func (h *Handler) authorizeSeller(w http.ResponseWriter, r *http.Request, sellerID string) error {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return httpx.ErrUnauthorized
	}
	ownerID, err := h.ownerOf(r.Context(), sellerID)
	if err != nil {
		httpx.RespondError(w, err)
		return err
	}
	if err := h.rbacSvc.AdminOrOwner(r.Context(), principal.ID, ownerID, shared.PermManageBilling); err != nil {
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
		Entity:   "subscription",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && h.logger != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
