package jobs

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// emailTemplates maps template keys to subject and body templates. Params
// are substituted with simple {name} placeholders; anything fancier should
// become a real template file first.
var emailTemplates = map[string]struct {
	Subject string
	Body    string
}{
	"invoice_paid": {
		Subject: "Payment received for invoice {invoice_id}",
		Body:    "We received your payment of {amount} for invoice {invoice_id}. Thanks!",
	},
	"invoice_payment_failed": {
		Subject: "Payment failed for invoice {invoice_id}",
		Body:    "Your payment of {amount} for invoice {invoice_id} did not go through. Please update your payment method.",
	},
	"invoice_voided": {
		Subject: "Invoice {invoice_id} voided",
		Body:    "Invoice {invoice_id} has been voided. No payment is due.",
	},
	"subscription_expired": {
		Subject: "Your subscription has expired",
		Body:    "Subscription {subscription_id} has ended. Renew to keep your listings visible.",
	},
	"listing_message": {
		Subject: "New activity on your listing",
		Body:    "A buyer interacted with one of your listings. Sign in to respond.",
	},
}

// RenderEmail resolves a template key into subject and body.
func RenderEmail(templateKey string, params map[string]string) (subject, body string, err error) {
	tmpl, ok := emailTemplates[templateKey]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateKey)
	}
	replacerArgs := make([]string, 0, len(params)*2)
	for k, v := range params {
		replacerArgs = append(replacerArgs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(replacerArgs...)
	return r.Replace(tmpl.Subject), r.Replace(tmpl.Body), nil
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPSender constructs a sender. user may be empty for relays that do
// not authenticate (Mailpit in development).
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	s := &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
	if user != "" {
		s.auth = smtp.PlainAuth("", user, password, host)
	}
	return s
}

// Send delivers one message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg))
}

var _ Sender = (*SMTPSender)(nil)
