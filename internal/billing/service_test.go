package billing

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/shared"
)

type memRepo struct {
	invoices map[string]Invoice
}

func newMemRepo() *memRepo {
	return &memRepo{invoices: map[string]Invoice{}}
}

func (m *memRepo) Get(ctx context.Context, id string) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice", httpx.ErrNotFound)
	}
	return &inv, nil
}

func (m *memRepo) GetByProviderRef(ctx context.Context, ref string) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.ProviderRef == ref {
			return &inv, nil
		}
	}
	return nil, fmt.Errorf("%w: invoice", httpx.ErrNotFound)
}

func (m *memRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if req.SellerID != "" && inv.SellerID != req.SellerID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(ctx context.Context, invoice Invoice) error {
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = invoice.CreatedAt
	m.invoices[invoice.ID] = invoice
	return nil
}

func (m *memRepo) SetStatus(ctx context.Context, id, status string, paidAt *time.Time) (bool, error) {
	inv, ok := m.invoices[id]
	if !ok || inv.Status != StatusOpen {
		return false, nil
	}
	inv.Status = status
	if paidAt != nil {
		inv.PaidAt = paidAt
	}
	inv.UpdatedAt = time.Now()
	m.invoices[id] = inv
	return true, nil
}

type memDeduper struct {
	seen map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: map[string]bool{}}
}

func (d *memDeduper) CheckAndInsert(ctx context.Context, key, module string) error {
	if d.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	d.seen[key] = true
	return nil
}

func (d *memDeduper) Delete(ctx context.Context, key string) error {
	delete(d.seen, key)
	return nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) InvoiceEvent(ctx context.Context, invoice Invoice, eventType string) {
	n.events = append(n.events, eventType+":"+invoice.ID)
}

func newTestService(t *testing.T) (*Service, *memRepo, *recordingNotifier) {
	t.Helper()
	repo := newMemRepo()
	notifier := &recordingNotifier{}
	svc := NewService(slog.Default(), repo, newMemDeduper(), nil, notifier)
	return svc, repo, notifier
}

func openInvoice(t *testing.T, svc *Service) *Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SellerID:    "s1",
		AmountCents: 4900,
		Currency:    "usd",
		ProviderRef: "prov_123",
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	svc, _, _ := newTestService(t)
	inv := openInvoice(t, svc)

	assert.Equal(t, StatusOpen, inv.Status)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, int64(4900), inv.AmountCents)
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{SellerID: "s1", AmountCents: 0, Currency: "USD"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{SellerID: "s1", AmountCents: 100, Currency: "dollars"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{AmountCents: 100, Currency: "USD"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestProcessEventPaid(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	inv := openInvoice(t, svc)

	payload := fmt.Sprintf(`{"id":"evt_1","type":"invoice.paid","data":{"invoice_id":%q}}`, inv.ID)
	applied, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.True(t, applied)

	got := repo.invoices[inv.ID]
	assert.Equal(t, StatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, []string{"invoice.paid:" + inv.ID}, notifier.events)
}

func TestProcessEventByProviderRef(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inv := openInvoice(t, svc)

	payload := `{"id":"evt_2","type":"invoice.voided","data":{"provider_ref":"prov_123"}}`
	applied, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusVoid, repo.invoices[inv.ID].Status)
}

func TestProcessEventReplayIsNoop(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	inv := openInvoice(t, svc)

	payload := fmt.Sprintf(`{"id":"evt_1","type":"invoice.paid","data":{"invoice_id":%q}}`, inv.ID)
	_, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.NoError(t, err)

	applied, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StatusPaid, repo.invoices[inv.ID].Status)
	assert.Len(t, notifier.events, 1)
}

func TestProcessEventUnknownTypeAcked(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inv := openInvoice(t, svc)

	payload := fmt.Sprintf(`{"id":"evt_3","type":"customer.updated","data":{"invoice_id":%q}}`, inv.ID)
	applied, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StatusOpen, repo.invoices[inv.ID].Status)
}

func TestProcessEventPaymentFailed(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inv := openInvoice(t, svc)

	payload := fmt.Sprintf(`{"id":"evt_4","type":"invoice.payment_failed","data":{"invoice_id":%q}}`, inv.ID)
	applied, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusUncollectible, repo.invoices[inv.ID].Status)
}

func TestProcessEventMalformed(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ProcessEvent(context.Background(), []byte(`{not json`))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.ProcessEvent(context.Background(), []byte(`{"type":"invoice.paid"}`))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.ProcessEvent(context.Background(), []byte(`{"id":"evt_5","type":"invoice.paid","data":{}}`))
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestProcessEventFailureReleasesKey(t *testing.T) {
	repo := newMemRepo()
	dedupe := newMemDeduper()
	svc := NewService(slog.Default(), repo, dedupe, nil, nil)

	// Unknown invoice: processing fails after the key is claimed.
	payload := `{"id":"evt_6","type":"invoice.paid","data":{"invoice_id":"missing"}}`
	_, err := svc.ProcessEvent(context.Background(), []byte(payload))
	require.Error(t, err)
	assert.False(t, dedupe.seen["evt_6"], "key should be released for the provider retry")
}
