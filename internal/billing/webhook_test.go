package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func postWebhook(t *testing.T, handler *WebhookHandler, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestWebhookValidSignature(t *testing.T) {
	svc, repo, _ := newTestService(t)
	handler := NewWebhookHandler(slog.Default(), svc, webhookSecret)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{SellerID: "s1", AmountCents: 4900, Currency: "USD"})
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"id":"evt_1","type":"invoice.paid","data":{"invoice_id":%q}}`, inv.ID)
	res := postWebhook(t, handler, payload, Sign(webhookSecret, []byte(payload)))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, StatusPaid, repo.invoices[inv.ID].Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, repo, _ := newTestService(t)
	handler := NewWebhookHandler(slog.Default(), svc, webhookSecret)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{SellerID: "s1", AmountCents: 4900, Currency: "USD"})
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"id":"evt_1","type":"invoice.paid","data":{"invoice_id":%q}}`, inv.ID)

	res := postWebhook(t, handler, payload, Sign("wrong-secret", []byte(payload)))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = postWebhook(t, handler, payload, "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = postWebhook(t, handler, payload, "not-hex")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	assert.Equal(t, StatusOpen, repo.invoices[inv.ID].Status)
}

func TestWebhookSignatureCoversBody(t *testing.T) {
	svc, _, _ := newTestService(t)
	handler := NewWebhookHandler(slog.Default(), svc, webhookSecret)

	payload := `{"id":"evt_1","type":"invoice.paid","data":{"invoice_id":"a"}}`
	tampered := `{"id":"evt_1","type":"invoice.paid","data":{"invoice_id":"b"}}`
	res := postWebhook(t, handler, tampered, Sign(webhookSecret, []byte(payload)))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
