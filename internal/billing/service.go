package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/shared"
)

// Notifier is told about settled invoice events so the notifications
// module can fan out. Wired in at startup; nil disables it.
type Notifier interface {
	InvoiceEvent(ctx context.Context, invoice Invoice, eventType string)
}

// Deduper filters replayed webhook events. Satisfied by the shared
// postgres idempotency store.
type Deduper interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service carries invoice business logic and webhook event processing.
type Service struct {
	logger      *slog.Logger
	repo        Repository
	idempotency Deduper
	audit       *shared.AuditLogger
	notifier    Notifier
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo Repository, idempotency Deduper, audit *shared.AuditLogger, notifier Notifier) *Service {
	return &Service{logger: logger, repo: repo, idempotency: idempotency, audit: audit, notifier: notifier}
}

// CreateInvoiceInput is the internal payload for opening an invoice.
type CreateInvoiceInput struct {
	SellerID       string
	SubscriptionID string
	AmountCents    int64
	Currency       string
	ProviderRef    string
}

// CreateInvoice opens a new invoice. Amount must be positive; currency is a
// three letter code.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if in.SellerID == "" {
		return nil, fmt.Errorf("%w: seller id is required", httpx.ErrValidation)
	}
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a three letter code", httpx.ErrValidation)
	}
	invoice := Invoice{
		ID:             uuid.NewString(),
		SellerID:       in.SellerID,
		SubscriptionID: in.SubscriptionID,
		AmountCents:    in.AmountCents,
		Currency:       currency,
		Status:         StatusOpen,
		ProviderRef:    in.ProviderRef,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return s.repo.Get(ctx, invoice.ID)
}

// Get fetches an invoice.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the filters.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.List(ctx, req)
}

// providerEvent is the envelope the payment provider posts. The data block
// stays opaque except for the fields we pick out.
type providerEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		InvoiceID   string `json:"invoice_id"`
		ProviderRef string `json:"provider_ref"`
	} `json:"data"`
}

// ProcessEvent applies one provider event. Duplicate event ids and unknown
// event types are acknowledged without effect. Returns whether the event
// changed anything.
func (s *Service) ProcessEvent(ctx context.Context, payload []byte) (bool, error) {
	var event providerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return false, fmt.Errorf("%w: malformed event payload", httpx.ErrValidation)
	}
	if event.ID == "" {
		return false, fmt.Errorf("%w: event id missing", httpx.ErrValidation)
	}

	status, known := statusForEvent(event.Type)
	if !known {
		s.logger.Info("skipping unknown webhook event", slog.String("event_id", event.ID), slog.String("type", event.Type))
		return false, nil
	}

	if err := s.idempotency.CheckAndInsert(ctx, event.ID, "billing"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			s.logger.Info("webhook event replayed", slog.String("event_id", event.ID))
			return false, nil
		}
		return false, fmt.Errorf("dedupe event: %w", err)
	}

	applied, err := s.applyEvent(ctx, event, status)
	if err != nil {
		// Release the key so the provider's retry can land.
		if delErr := s.idempotency.Delete(ctx, event.ID); delErr != nil {
			s.logger.Error("release idempotency key", slog.String("event_id", event.ID), slog.Any("error", delErr))
		}
		return false, err
	}
	return applied, nil
}

func (s *Service) applyEvent(ctx context.Context, event providerEvent, status string) (bool, error) {
	invoice, err := s.resolveInvoice(ctx, event)
	if err != nil {
		return false, err
	}

	var paidAt *time.Time
	if status == StatusPaid {
		now := time.Now().UTC()
		paidAt = &now
	}
	changed, err := s.repo.SetStatus(ctx, invoice.ID, status, paidAt)
	if err != nil {
		return false, fmt.Errorf("set invoice status: %w", err)
	}
	if !changed {
		s.logger.Info("invoice already settled", slog.String("invoice_id", invoice.ID), slog.String("event", event.Type))
		return false, nil
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  "provider",
			Action:   "invoice." + status,
			Entity:   "invoice",
			EntityID: invoice.ID,
			Meta:     map[string]any{"event_id": event.ID, "event_type": event.Type},
		}); err != nil {
			s.logger.Warn("audit record", slog.Any("error", err))
		}
	}

	if s.notifier != nil {
		updated, err := s.repo.Get(ctx, invoice.ID)
		if err == nil {
			s.notifier.InvoiceEvent(ctx, *updated, event.Type)
		}
	}
	return true, nil
}

func (s *Service) resolveInvoice(ctx context.Context, event providerEvent) (*Invoice, error) {
	if event.Data.InvoiceID != "" {
		return s.repo.Get(ctx, event.Data.InvoiceID)
	}
	if event.Data.ProviderRef != "" {
		return s.repo.GetByProviderRef(ctx, event.Data.ProviderRef)
	}
	return nil, fmt.Errorf("%w: event carries no invoice reference", httpx.ErrValidation)
}
