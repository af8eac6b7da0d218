package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/motorlot/motorlot/internal/auth"
	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/listings"
	"github.com/motorlot/motorlot/internal/notifications"
	"github.com/motorlot/motorlot/internal/observability"
	"github.com/motorlot/motorlot/internal/rbac"
	"github.com/motorlot/motorlot/internal/sellers"
	"github.com/motorlot/motorlot/internal/shared"
	"github.com/motorlot/motorlot/internal/subscriptions"
	"github.com/motorlot/motorlot/internal/users"
	"github.com/motorlot/motorlot/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthMiddleware *auth.Middleware

	AuthHandler          *auth.Handler
	RBACHandler          *rbac.Handler
	UsersHandler         *users.Handler
	SellersHandler       *sellers.Handler
	ListingsHandler      *listings.Handler
	BillingHandler       *billing.Handler
	WebhookHandler       *billing.WebhookHandler
	SubscriptionsHandler *subscriptions.Handler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
//
// The tree is two tiers. Health, metrics and the billing webhook sit on
// the outer router with no session machinery: the webhook carries its own
// HMAC signature and must never be rejected by a missing CSRF token.
// Everything else hangs off the inner router behind the full stack.
func NewRouter(params RouterParams) http.Handler {
	root := chi.NewRouter()
	root.Use(chimw.RealIP)
	root.Use(chimw.RequestID)
	root.Use(chimw.Recoverer)

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.WebhookHandler != nil {
		root.Method(http.MethodPost, "/webhooks/billing", params.WebhookHandler)
	}

	api := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		api.Use(mw)
	}
	api.Use(chimw.Logger)
	if params.AuthMiddleware != nil {
		api.Use(params.AuthMiddleware.WithPrincipal)
	}

	params.AuthHandler.MountRoutes(api)
	params.RBACHandler.MountRoutes(api)
	params.UsersHandler.MountRoutes(api)
	params.SellersHandler.MountRoutes(api)
	params.ListingsHandler.MountRoutes(api)
	params.BillingHandler.MountRoutes(api)
	params.SubscriptionsHandler.MountRoutes(api)
	params.NotificationsHandler.MountRoutes(api)
	if params.JobHandler != nil {
		params.JobHandler.MountRoutes(api)
	}

	root.Mount("/", api)

	return root
}
