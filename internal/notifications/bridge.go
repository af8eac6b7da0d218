package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/motorlot/motorlot/internal/billing"
	"github.com/motorlot/motorlot/internal/subscriptions"
)

// OwnerLookup resolves a seller id to its owning user id. Wired to the
// sellers service at startup.
type OwnerLookup func(ctx context.Context, sellerID string) (string, error)

// Bridge translates billing and subscription events into notification
// dispatches. Delivery failures are logged, never propagated: an undeliverable
// notification must not fail a webhook or the expiry scan.
type Bridge struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	ownerOf    OwnerLookup
}

// NewBridge constructs the event bridge.
func NewBridge(logger *slog.Logger, dispatcher *Dispatcher, ownerOf OwnerLookup) *Bridge {
	return &Bridge{logger: logger, dispatcher: dispatcher, ownerOf: ownerOf}
}

// InvoiceEvent implements billing.Notifier.
func (b *Bridge) InvoiceEvent(ctx context.Context, invoice billing.Invoice, eventType string) {
	var title, templateKey string
	switch eventType {
	case billing.EventInvoicePaid:
		title = "Payment received"
		templateKey = "invoice_paid"
	case billing.EventInvoicePaymentFailed:
		title = "Payment failed"
		templateKey = "invoice_payment_failed"
	case billing.EventInvoiceVoided:
		title = "Invoice voided"
		templateKey = "invoice_voided"
	default:
		return
	}
	b.deliver(ctx, invoice.SellerID, Message{
		Category:    CategoryBilling,
		Title:       title,
		Body:        fmt.Sprintf("Invoice %s: %s.", invoice.ID, title),
		TemplateKey: templateKey,
		Params: map[string]string{
			"invoice_id": invoice.ID,
			"amount":     fmt.Sprintf("%.2f %s", float64(invoice.AmountCents)/100, invoice.Currency),
		},
	})
}

// SubscriptionExpired implements subscriptions.ExpiryNotifier.
func (b *Bridge) SubscriptionExpired(ctx context.Context, sub subscriptions.Subscription) {
	b.deliver(ctx, sub.SellerID, Message{
		Category:    CategorySubscriptions,
		Title:       "Subscription expired",
		Body:        "Your subscription period has ended. Renew to keep your listings visible.",
		TemplateKey: "subscription_expired",
		Params:      map[string]string{"subscription_id": sub.ID},
	})
}

func (b *Bridge) deliver(ctx context.Context, sellerID string, msg Message) {
	ownerID, err := b.ownerOf(ctx, sellerID)
	if err != nil {
		b.logger.Error("resolve seller owner", slog.String("seller_id", sellerID), slog.Any("error", err))
		return
	}
	msg.UserID = ownerID
	if err := b.dispatcher.Dispatch(ctx, msg); err != nil {
		b.logger.Error("dispatch event notification", slog.String("seller_id", sellerID), slog.Any("error", err))
	}
}

var _ billing.Notifier = (*Bridge)(nil)
var _ subscriptions.ExpiryNotifier = (*Bridge)(nil)
