package notifications

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/rbac"
	"github.com/motorlot/motorlot/internal/shared"
)

type Handler struct {
	logger     *slog.Logger
	repo       Repository
	categories *CategoryTable
	dispatcher *Dispatcher
	rbacSvc    *rbac.Service
	mw         *rbac.Middleware
}

func NewHandler(logger *slog.Logger, repo Repository, categories *CategoryTable, dispatcher *Dispatcher, rbacSvc *rbac.Service, mw *rbac.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, categories: categories, dispatcher: dispatcher, rbacSvc: rbacSvc, mw: mw}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/categories", h.listCategories)
		r.Get("/users/{userID}", h.list)
		r.Post("/users/{userID}/{id}/read", h.markRead)
		r.Get("/users/{userID}/preferences", h.preferences)
		r.Put("/users/{userID}/preferences", h.setPreference)
		r.With(h.mw.RequirePermission(shared.PermSendNotifications)).Post("/send", h.send)
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.categories.All())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.requireSelfOrAdmin(w, r, userID); err != nil {
		return
	}
	page := shared.ParsePage(r, 25, 100)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, total, err := h.repo.ListForUser(r.Context(), userID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, items, total, page.Limit, page.Offset)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.requireSelfOrAdmin(w, r, userID); err != nil {
		return
	}
	marked, err := h.repo.MarkRead(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !marked {
		httpx.RespondError(w, fmt.Errorf("%w: notification", httpx.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) preferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.requireSelfOrAdmin(w, r, userID); err != nil {
		return
	}
	prefs, err := h.repo.Preferences(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, prefs)
}

type setPreferenceRequest struct {
	Category string `json:"category" validate:"required"`
	Channel  string `json:"channel" validate:"required,oneof=email in_app"`
	Enabled  bool   `json:"enabled"`
}

func (h *Handler) setPreference(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.requireSelfOrAdmin(w, r, userID); err != nil {
		return
	}
	var req setPreferenceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	category, ok := h.categories.Get(req.Category)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: unknown category %s", httpx.ErrValidation, req.Category))
		return
	}
	if category.Locked && req.Channel == ChannelEmail && !req.Enabled {
		httpx.RespondError(w, fmt.Errorf("%w: %s email cannot be disabled", httpx.ErrValidation, category.Key))
		return
	}
	if err := h.repo.SetPreference(r.Context(), Preference{
		UserID:   userID,
		Category: req.Category,
		Channel:  req.Channel,
		Enabled:  req.Enabled,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendRequest struct {
	UserID      string            `json:"user_id" validate:"required"`
	Category    string            `json:"category" validate:"required"`
	Title       string            `json:"title" validate:"required,max=200"`
	Body        string            `json:"body" validate:"required,max=5000"`
	TemplateKey string            `json:"template_key" validate:"required,max=100"`
	Params      map[string]string `json:"params"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if fields := shared.ValidateStruct(req); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	if err := h.dispatcher.Dispatch(r.Context(), Message{
		UserID:      req.UserID,
		Category:    req.Category,
		Title:       req.Title,
		Body:        req.Body,
		TemplateKey: req.TemplateKey,
		Params:      req.Params,
	}); err != nil {
		h.logger.Error("dispatch notification", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Dispatch failed", "the notification could not be delivered")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) requireSelfOrAdmin(w http.ResponseWriter, r *http.Request, userID string) error {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return httpx.ErrUnauthorized
	}
	if err := h.rbacSvc.AdminOrOwner(r.Context(), principal.ID, userID, shared.PermAdminAccess); err != nil {
		httpx.RespondError(w, err)
		return err
	}
	return nil
}
