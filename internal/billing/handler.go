package billing

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
	logger   *slog.Logger
	service  *Service
	exporter *PDFExporter
	mw       *rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, exporter *PDFExporter, mw *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, exporter: exporter, mw: mw}
}

// MountRoutes registers the invoice read surface. The webhook is mounted
// separately because it must bypass session and CSRF middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/billing/invoices", func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.PermViewBilling))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/pdf", h.pdf)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 25, 100)
	q := r.URL.Query()
	req := ListInvoicesRequest{
		SellerID:       q.Get("seller_id"),
		SubscriptionID: q.Get("subscription_id"),
		Status:         q.Get("status"),
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, items, total, req.Limit, req.Offset)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.exporter.Export(r.Context(), *invoice)
	if err != nil {
		h.logger.Error("export invoice pdf", slog.String("invoice_id", invoice.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render failed", "the document renderer is unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoice.ID))
	_, _ = w.Write(pdf)
}
