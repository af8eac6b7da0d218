package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Enqueuer hands email payloads to the background queue. Satisfied by the
// jobs client.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailPayload) error
}

// Directory resolves a user id to the address mail should go to.
type Directory interface {
	EmailOf(ctx context.Context, userID string) (string, error)
}

// Message is one notification to deliver.
type Message struct {
	UserID      string
	Category    string
	Title       string
	Body        string
	TemplateKey string
	Params      map[string]string
}

// Dispatcher resolves preferences and fans a message out per channel.
type Dispatcher struct {
	logger     *slog.Logger
	repo       Repository
	categories *CategoryTable
	enqueuer   Enqueuer
	directory  Directory
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(logger *slog.Logger, repo Repository, categories *CategoryTable, enqueuer Enqueuer, directory Directory) *Dispatcher {
	return &Dispatcher{logger: logger, repo: repo, categories: categories, enqueuer: enqueuer, directory: directory}
}

// Dispatch delivers one message. Channel failures are independent: a dead
// queue does not block the inbox row and vice versa.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if msg.UserID == "" {
		return fmt.Errorf("dispatch: user id required")
	}

	prefs, err := d.storedPrefs(ctx, msg.UserID, msg.Category)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	email, inApp, err := d.categories.Resolve(msg.Category, prefs)
	if err != nil {
		return err
	}

	var firstErr error
	if email && d.enqueuer != nil {
		if err := d.sendEmail(ctx, msg); err != nil {
			d.logger.Error("enqueue notification email", slog.String("user_id", msg.UserID), slog.String("category", msg.Category), slog.Any("error", err))
			firstErr = err
		}
	}
	if inApp {
		entry := Notification{
			ID:       uuid.NewString(),
			UserID:   msg.UserID,
			Category: msg.Category,
			Title:    msg.Title,
			Body:     msg.Body,
		}
		if err := d.repo.Insert(ctx, entry); err != nil {
			d.logger.Error("insert notification", slog.String("user_id", msg.UserID), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *Dispatcher) sendEmail(ctx context.Context, msg Message) error {
	to, err := d.directory.EmailOf(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("resolve address: %w", err)
	}
	return d.enqueuer.EnqueueEmail(ctx, EmailPayload{
		To:          to,
		TemplateKey: msg.TemplateKey,
		Params:      msg.Params,
	})
}

func (d *Dispatcher) storedPrefs(ctx context.Context, userID, category string) (map[string]bool, error) {
	stored, err := d.repo.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := make(map[string]bool)
	for _, p := range stored {
		if p.Category == category {
			prefs[p.Channel] = p.Enabled
		}
	}
	return prefs, nil
}
