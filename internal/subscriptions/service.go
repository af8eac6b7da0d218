package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Invoicer opens the invoice that starts a subscription period. Satisfied
// by the billing service.
type Invoicer interface {
	CreateInvoice(ctx context.Context, in billing.CreateInvoiceInput) (*billing.Invoice, error)
}

// ExpiryNotifier is told about subscriptions lapsing so notifications can
// go out. Nil disables it.
type ExpiryNotifier interface {
	SubscriptionExpired(ctx context.Context, sub Subscription)
}

// Service carries plan and subscription business logic.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	invoicer Invoicer
	notifier ExpiryNotifier
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo Repository, invoicer Invoicer, notifier ExpiryNotifier) *Service {
	return &Service{logger: logger, repo: repo, invoicer: invoicer, notifier: notifier}
}

// CreatePlan defines a new plan.
func (s *Service) CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	plan := Plan{
		ID:             uuid.NewString(),
		Code:           strings.ToLower(strings.TrimSpace(req.Code)),
		Name:           strings.TrimSpace(req.Name),
		PriceCents:     req.PriceCents,
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		IntervalMonths: req.IntervalMonths,
		ListingQuota:   req.ListingQuota,
		IsActive:       true,
	}
	if plan.Code == "" || plan.Name == "" {
		return nil, fmt.Errorf("%w: code and name are required", httpx.ErrValidation)
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return s.repo.GetPlan(ctx, plan.ID)
}

// UpdatePlan applies a partial plan update.
func (s *Service) UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.PriceCents != nil {
		updates["price_cents"] = *req.PriceCents
	}
	if req.ListingQuota != nil {
		updates["listing_quota"] = *req.ListingQuota
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return s.repo.GetPlan(ctx, id)
	}
	updated, err := s.repo.UpdatePlan(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: plan %s", httpx.ErrNotFound, id)
	}
	return s.repo.GetPlan(ctx, id)
}

// ListPlans returns plans, optionally only the purchasable ones.
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error) {
	return s.repo.ListPlans(ctx, activeOnly)
}

// GetPlan fetches a plan.
func (s *Service) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// Subscribe starts a subscription on the named plan and opens the first
// invoice for the period.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, *billing.Invoice, error) {
	plan, err := s.repo.GetPlanByCode(ctx, strings.ToLower(strings.TrimSpace(req.PlanCode)))
	if err != nil {
		return nil, nil, err
	}
	if !plan.IsActive {
		return nil, nil, fmt.Errorf("%w: plan %s is not purchasable", httpx.ErrValidation, plan.Code)
	}

	existing, err := s.repo.ActiveForSeller(ctx, req.SellerID)
	if err != nil {
		return nil, nil, fmt.Errorf("check current subscription: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: seller already has a live subscription", httpx.ErrDuplicate)
	}

	now := time.Now().UTC()
	sub := Subscription{
		ID:          uuid.NewString(),
		SellerID:    req.SellerID,
		PlanID:      plan.ID,
		Status:      StatusActive,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, plan.IntervalMonths, 0),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("create subscription: %w", err)
	}

	invoice, err := s.invoicer.CreateInvoice(ctx, billing.CreateInvoiceInput{
		SellerID:       sub.SellerID,
		SubscriptionID: sub.ID,
		AmountCents:    plan.PriceCents,
		Currency:       plan.Currency,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open subscription invoice: %w", err)
	}

	created, err := s.repo.GetSubscription(ctx, sub.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, invoice, nil
}

// Cancel stops renewal. The current period keeps running until its end.
func (s *Service) Cancel(ctx context.Context, id string) (*Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	switch sub.Status {
	case StatusActive, StatusPastDue:
	default:
		return nil, fmt.Errorf("%w: subscription is %s", httpx.ErrValidation, sub.Status)
	}
	now := time.Now().UTC()
	if _, err := s.repo.SetStatus(ctx, id, StatusCanceled, &now); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	return s.repo.GetSubscription(ctx, id)
}

// MarkPastDue flags a subscription after a failed payment.
func (s *Service) MarkPastDue(ctx context.Context, id string) error {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != StatusActive {
		return nil
	}
	_, err = s.repo.SetStatus(ctx, id, StatusPastDue, nil)
	return err
}

// Get fetches a subscription.
func (s *Service) Get(ctx context.Context, id string) (*Subscription, error) {
	return s.repo.GetSubscription(ctx, id)
}

// ListForSeller returns a seller's subscription history.
func (s *Service) ListForSeller(ctx context.Context, sellerID string) ([]Subscription, error) {
	return s.repo.ListForSeller(ctx, sellerID)
}

// ExpireLapsed moves every lapsed subscription to expired and notifies.
// Run from the nightly scheduler; safe to run repeatedly.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireLapsed(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	for _, sub := range expired {
		s.logger.Info("subscription expired", slog.String("subscription_id", sub.ID), slog.String("seller_id", sub.SellerID))
		if s.notifier != nil {
			s.notifier.SubscriptionExpired(ctx, sub)
		}
	}
	return len(expired), nil
}
