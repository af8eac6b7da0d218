package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/motorlot/motorlot/internal/app"
	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/notifications"
	"github.com/motorlot/motorlot/internal/platform/cache"
	"github.com/motorlot/motorlot/internal/platform/db"
	"github.com/motorlot/motorlot/internal/sellers"
	"github.com/motorlot/motorlot/internal/shared"
	"github.com/motorlot/motorlot/internal/subscriptions"
	"github.com/motorlot/motorlot/internal/users"
	"github.com/motorlot/motorlot/jobs"
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
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

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

	usersRepo := users.NewRepository(pool)
	notificationsRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(logger, notificationsRepo, categories, jobsClient, userDirectory{repo: usersRepo})

	sellersRepo := sellers.NewRepository(pool)
	sellersService := sellers.NewService(sellersRepo)
	ownerOf := func(ctx context.Context, sellerID string) (string, error) {
		seller, err := sellersService.Get(ctx, sellerID)
		if err != nil {
			return "", err
		}
		return seller.OwnerUserID, nil
	}
	bridge := notifications.NewBridge(logger, dispatcher, ownerOf)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(logger, billingRepo, idempotencyStore, auditLogger, bridge)

	subscriptionsRepo := subscriptions.NewRepository(pool)
	subscriptionsService := subscriptions.NewService(logger, subscriptionsRepo, billingService, bridge)

	sender := jobs.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)

	expireTask, err := jobs.NewSubscriptionsExpireTask()
	if err != nil {
		logger.Error("build expire task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyEmail, Handler: jobs.HandleNotifyEmail(logger, sender)},
			{Type: jobs.TaskSubscriptionsExpire, Handler: jobs.HandleSubscriptionsExpire(logger, subscriptionsService)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
