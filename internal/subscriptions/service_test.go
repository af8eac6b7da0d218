package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/platform/httpx"
)

type memRepo struct {
	plans map[string]Plan
	subs  map[string]Subscription
}

func newMemRepo() *memRepo {
	return &memRepo{plans: map[string]Plan{}, subs: map[string]Subscription{}}
}

func (m *memRepo) GetPlan(ctx context.Context, id string) (*Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: plan", httpx.ErrNotFound)
	}
	return &p, nil
}

func (m *memRepo) GetPlanByCode(ctx context.Context, code string) (*Plan, error) {
	for _, p := range m.plans {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: plan", httpx.ErrNotFound)
}

func (m *memRepo) ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error) {
	var out []Plan
	for _, p := range m.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memRepo) CreatePlan(ctx context.Context, plan Plan) error {
	for _, p := range m.plans {
		if p.Code == plan.Code {
			return fmt.Errorf("%w: plan code already exists", httpx.ErrDuplicate)
		}
	}
	m.plans[plan.ID] = plan
	return nil
}

func (m *memRepo) UpdatePlan(ctx context.Context, id string, updates map[string]any) (bool, error) {
	p, ok := m.plans[id]
	if !ok {
		return false, nil
	}
	if v, ok := updates["is_active"]; ok {
		p.IsActive = v.(bool)
	}
	if v, ok := updates["price_cents"]; ok {
		p.PriceCents = v.(int64)
	}
	m.plans[id] = p
	return true, nil
}

func (m *memRepo) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	s, ok := m.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: subscription", httpx.ErrNotFound)
	}
	return &s, nil
}

func (m *memRepo) ActiveForSeller(ctx context.Context, sellerID string) (*Subscription, error) {
	for _, s := range m.subs {
		if s.SellerID != sellerID {
			continue
		}
		switch s.Status {
		case StatusActive, StatusPastDue, StatusCanceled:
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ListForSeller(ctx context.Context, sellerID string) ([]Subscription, error) {
	var out []Subscription
	for _, s := range m.subs {
		if s.SellerID == sellerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) CreateSubscription(ctx context.Context, sub Subscription) error {
	m.subs[sub.ID] = sub
	return nil
}

func (m *memRepo) SetStatus(ctx context.Context, id, status string, canceledAt *time.Time) (bool, error) {
	s, ok := m.subs[id]
	if !ok {
		return false, nil
	}
	s.Status = status
	if canceledAt != nil {
		s.CanceledAt = canceledAt
	}
	m.subs[id] = s
	return true, nil
}

func (m *memRepo) ExpireLapsed(ctx context.Context, cutoff time.Time) ([]Subscription, error) {
	var out []Subscription
	for id, s := range m.subs {
		if !s.PeriodEnd.Before(cutoff) {
			continue
		}
		switch s.Status {
		case StatusActive, StatusPastDue, StatusCanceled:
			s.Status = StatusExpired
			m.subs[id] = s
			out = append(out, s)
		}
	}
	return out, nil
}

type stubInvoicer struct {
	invoices []billing.CreateInvoiceInput
	fail     error
}

func (s *stubInvoicer) CreateInvoice(ctx context.Context, in billing.CreateInvoiceInput) (*billing.Invoice, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.invoices = append(s.invoices, in)
	return &billing.Invoice{
		ID:             uuid.NewString(),
		SellerID:       in.SellerID,
		SubscriptionID: in.SubscriptionID,
		AmountCents:    in.AmountCents,
		Currency:       in.Currency,
		Status:         billing.StatusOpen,
	}, nil
}

type recordingExpiryNotifier struct {
	expired []string
}

func (n *recordingExpiryNotifier) SubscriptionExpired(ctx context.Context, sub Subscription) {
	n.expired = append(n.expired, sub.ID)
}

func newTestService(t *testing.T) (*Service, *memRepo, *stubInvoicer, *recordingExpiryNotifier) {
	t.Helper()
	repo := newMemRepo()
	invoicer := &stubInvoicer{}
	notifier := &recordingExpiryNotifier{}
	svc := NewService(slog.Default(), repo, invoicer, notifier)
	return svc, repo, invoicer, notifier
}

func seedPlan(t *testing.T, svc *Service) *Plan {
	t.Helper()
	plan, err := svc.CreatePlan(context.Background(), CreatePlanRequest{
		Code:           "Dealer_Monthly",
		Name:           "Dealer Monthly",
		PriceCents:     4900,
		Currency:       "usd",
		IntervalMonths: 1,
		ListingQuota:   50,
	})
	require.NoError(t, err)
	return plan
}

func TestCreatePlanNormalises(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	plan := seedPlan(t, svc)

	assert.Equal(t, "dealer_monthly", plan.Code)
	assert.Equal(t, "USD", plan.Currency)
	assert.True(t, plan.IsActive)
}

func TestCreatePlanDuplicateCode(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	seedPlan(t, svc)

	_, err := svc.CreatePlan(context.Background(), CreatePlanRequest{
		Code:           "dealer_monthly",
		Name:           "Again",
		PriceCents:     100,
		Currency:       "USD",
		IntervalMonths: 1,
		ListingQuota:   1,
	})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestSubscribeOpensInvoice(t *testing.T) {
	svc, _, invoicer, _ := newTestService(t)
	plan := seedPlan(t, svc)

	sub, invoice, err := svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	require.NoError(t, err)

	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, plan.ID, sub.PlanID)
	assert.WithinDuration(t, sub.PeriodStart.AddDate(0, 1, 0), sub.PeriodEnd, time.Second)

	require.Len(t, invoicer.invoices, 1)
	assert.Equal(t, sub.ID, invoicer.invoices[0].SubscriptionID)
	assert.Equal(t, int64(4900), invoice.AmountCents)
}

func TestSubscribeRejectsSecondLive(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	seedPlan(t, svc)

	_, _, err := svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	require.NoError(t, err)

	_, _, err = svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestSubscribeInactivePlan(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	plan := seedPlan(t, svc)

	inactive := false
	_, err := svc.UpdatePlan(context.Background(), plan.ID, UpdatePlanRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, _, err = svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCancelKeepsPeriodRunning(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	seedPlan(t, svc)

	sub, _, err := svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	require.NoError(t, err)

	canceled, err := svc.Cancel(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.CanceledAt)
	assert.True(t, canceled.InGoodStanding(time.Now()), "access holds until period end")

	_, err = svc.Cancel(context.Background(), sub.ID)
	assert.ErrorIs(t, err, httpx.ErrValidation, "cannot cancel twice")
}

func TestMarkPastDue(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	seedPlan(t, svc)

	sub, _, err := svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkPastDue(context.Background(), sub.ID))
	assert.Equal(t, StatusPastDue, repo.subs[sub.ID].Status)

	// Already past due: noop.
	require.NoError(t, svc.MarkPastDue(context.Background(), sub.ID))
}

func TestExpireLapsed(t *testing.T) {
	svc, repo, _, notifier := newTestService(t)
	seedPlan(t, svc)

	sub, _, err := svc.Subscribe(context.Background(), SubscribeRequest{SellerID: "s1", PlanCode: "dealer_monthly"})
	require.NoError(t, err)

	// Rewind the period so the subscription has lapsed.
	stored := repo.subs[sub.ID]
	stored.PeriodEnd = time.Now().Add(-time.Hour)
	repo.subs[sub.ID] = stored

	count, err := svc.ExpireLapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, StatusExpired, repo.subs[sub.ID].Status)
	assert.Equal(t, []string{sub.ID}, notifier.expired)

	count, err = svc.ExpireLapsed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "second scan finds nothing")
}
