package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// SignatureHeader carries the provider's hex encoded HMAC-SHA256 of the
// raw request body.
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// WebhookHandler terminates the payment provider callback. It sits outside
// the session middleware; the HMAC signature is its only authentication.
type WebhookHandler struct {
	logger  *slog.Logger
	service *Service
	secret  []byte
}

// NewWebhookHandler constructs the handler with the shared provider secret.
func NewWebhookHandler(logger *slog.Logger, service *Service, secret string) *WebhookHandler {
	return &WebhookHandler{logger: logger, service: service, secret: []byte(secret)}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", "could not read payload")
		return
	}

	if !h.verifySignature(payload, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", slog.String("remote", r.RemoteAddr))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid signature")
		return
	}

	applied, err := h.service.ProcessEvent(r.Context(), payload)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the signature for a payload. Exported for tests and for
// the seed tooling that replays fixture events.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
