package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/motorlot/motorlot/internal/app"
	"github.com/motorlot/motorlot/internal/auth"
	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/listings"
	"github.com/motorlot/motorlot/internal/notifications"
	"github.com/motorlot/motorlot/internal/observability"
	"github.com/motorlot/motorlot/internal/platform/cache"
	"github.com/motorlot/motorlot/internal/platform/db"
	"github.com/motorlot/motorlot/internal/rbac"
	"github.com/motorlot/motorlot/internal/sellers"
	"github.com/motorlot/motorlot/internal/shared"
	"github.com/motorlot/motorlot/internal/subscriptions"
	"github.com/motorlot/motorlot/internal/users"
	"github.com/motorlot/motorlot/jobs"
	"github.com/motorlot/motorlot/report"
)

// userDirectory resolves notification recipients through the users store.
type userDirectory struct {
	repo users.Repository
}

func (d userDirectory) EmailOf(ctx context.Context, userID string) (string, error) {
	user, err := d.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	rbacStore := rbac.NewStore(dbpool)
	rbacCatalog := rbac.NewCatalog(rbacStore)
	rbacService := rbac.NewService(rbacStore)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Denials: metrics}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)
	authMiddleware := &auth.Middleware{Logger: logger, Access: rbacStore}

	rbacHandler := rbac.NewHandler(logger, rbacCatalog, rbacService, auditLogger, rbacMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, rbacService, auditLogger, &rbacMiddleware)

	sellersRepo := sellers.NewRepository(dbpool)
	sellersService := sellers.NewService(sellersRepo)
	sellersHandler := sellers.NewHandler(logger, sellersService, rbacService, auditLogger, &rbacMiddleware)

	listingsRepo := listings.NewRepository(dbpool)
	listingsService := listings.NewService(listingsRepo)
	listingsHandler := listings.NewHandler(logger, listingsService, rbacService, auditLogger, &rbacMiddleware)

	categories, err := notifications.LoadCategories()
	if err != nil {
		logger.Error("load notification categories", slog.Any("error", err))
		os.Exit(1)
	}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	notificationsRepo := notifications.NewRepository(dbpool)
	dispatcher := notifications.NewDispatcher(logger, notificationsRepo, categories, jobsClient, userDirectory{repo: usersRepo})

	ownerOf := func(ctx context.Context, sellerID string) (string, error) {
		seller, err := sellersService.Get(ctx, sellerID)
		if err != nil {
			return "", err
		}
		return seller.OwnerUserID, nil
	}
	bridge := notifications.NewBridge(logger, dispatcher, ownerOf)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(logger, billingRepo, idempotencyStore, auditLogger, bridge)
	pdfExporter := billing.NewPDFExporter(report.NewClient(cfg.GotenbergURL))
	billingHandler := billing.NewHandler(logger, billingService, pdfExporter, &rbacMiddleware)
	webhookHandler := billing.NewWebhookHandler(logger, billingService, cfg.WebhookSecret)

	subscriptionsRepo := subscriptions.NewRepository(dbpool)
	subscriptionsService := subscriptions.NewService(logger, subscriptionsRepo, billingService, bridge)
	subscriptionsHandler := subscriptions.NewHandler(logger, subscriptionsService, rbacService, auditLogger, &rbacMiddleware, ownerOf)

	notificationsHandler := notifications.NewHandler(logger, notificationsRepo, categories, dispatcher, rbacService, &rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger, &rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthMiddleware:       authMiddleware,
		AuthHandler:          authHandler,
		RBACHandler:          rbacHandler,
		UsersHandler:         usersHandler,
		SellersHandler:       sellersHandler,
		ListingsHandler:      listingsHandler,
		BillingHandler:       billingHandler,
		WebhookHandler:       webhookHandler,
		SubscriptionsHandler: subscriptionsHandler,
		NotificationsHandler: notificationsHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
