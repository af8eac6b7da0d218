// Package jobs hosts the asynq task definitions, the worker and the queue
// client used by the API process.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/motorlot/motorlot/internal/notifications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyEmail delivers one notification email.
	TaskNotifyEmail = "notify:email"
	// TaskSubscriptionsExpire runs the nightly subscription expiry scan.
	TaskSubscriptionsExpire = "subscriptions:expire"
)

// NewNotifyEmailTask wraps an email payload in an asynq task.
func NewNotifyEmailTask(payload notifications.EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// Sender delivers a rendered email. The SMTP implementation lives in
// mailer.go; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HandleNotifyEmail returns the asynq handler for TaskNotifyEmail.
func HandleNotifyEmail(logger *slog.Logger, sender Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload notifications.EmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		subject, body, err := RenderEmail(payload.TemplateKey, payload.Params)
		if err != nil {
			logger.Error("render email", slog.String("template", payload.TemplateKey), slog.Any("error", err))
			return asynq.SkipRetry
		}
		if err := sender.Send(ctx, payload.To, subject, body); err != nil {
			logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// ExpirePayload carries scheduling metadata for the nightly scan.
type ExpirePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSubscriptionsExpireTask constructs the nightly expiry task.
func NewSubscriptionsExpireTask() (*asynq.Task, error) {
	data, err := json.Marshal(ExpirePayload{ScheduledFor: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubscriptionsExpire, data, asynq.Queue(QueueDefault)), nil
}

// Expirer runs the expiry scan. Satisfied by the subscriptions service.
type Expirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

// HandleSubscriptionsExpire returns the asynq handler for the expiry scan.
func HandleSubscriptionsExpire(logger *slog.Logger, expirer Expirer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		count, err := expirer.ExpireLapsed(ctx)
		if err != nil {
			logger.Error("subscription expiry scan", slog.Any("error", err))
			return err
		}
		logger.Info("subscription expiry scan done", slog.Int("expired", count))
		return nil
	}
}
