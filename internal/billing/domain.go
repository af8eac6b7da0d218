// Package billing owns invoices and the payment-provider webhook.
package billing

import "time"

// Invoice statuses. Invoices open and are then settled, voided or written
// off by provider events; there is no way back from a settled state.
const (
	StatusOpen          = "open"
	StatusPaid          = "paid"
	StatusVoid          = "void"
	StatusUncollectible = "uncollectible"
)

// Webhook event types we act on. Anything else is acknowledged and skipped.
const (
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventInvoiceVoided        = "invoice.voided"
)

// Invoice is a charge against a seller, usually for a subscription period.
type Invoice struct {
	ID             string     `json:"id"`
	SellerID       string     `json:"seller_id"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	ProviderRef    string     `json:"provider_ref,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// statusForEvent maps a provider event type onto the target invoice status.
func statusForEvent(eventType string) (string, bool) {
	switch eventType {
	case EventInvoicePaid:
		return StatusPaid, true
	case EventInvoicePaymentFailed:
		return StatusUncollectible, true
	case EventInvoiceVoided:
		return StatusVoid, true
	default:
		return "", false
	}
}
