package controller

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/rs/zerolog/log"
)

const (
	signatureHeader = "X-Pi-Signature"
	maxWebhookBody  = 1 << 20

	eventPaymentCompleted = "payment_completed"
	eventPaymentCancelled = "payment_cancelled"
)

// webhookEvent is the provider's delivery payload.
type webhookEvent struct {
	Event     string `json:"event"`
	PaymentID string `json:"payment_id"`
	TxID      string `json:"txid,omitempty"`
}

// WebhookController receives Pi platform delivery callbacks. Deliveries are
// authenticated with an HMAC-SHA256 signature over the raw body.
type WebhookController struct {
	secret     string
	completeUC *settlement.CompletePaymentUseCase
	cancelUC   *settlement.CancelPaymentUseCase
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(
	secret string,
	completeUC *settlement.CompletePaymentUseCase,
	cancelUC *settlement.CancelPaymentUseCase,
) *WebhookController {
	return &WebhookController{
		secret:     secret,
		completeUC: completeUC,
		cancelUC:   cancelUC,
	}
}

// HandleDelivery handles POST /webhooks/pi
func (h *WebhookController) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read body", Code: "invalid_body"})
		return
	}

	if err := h.verifySignature(body, r.Header.Get(signatureHeader)); err != nil {
		writeError(w, err)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload", Code: "invalid_body"})
		return
	}
	if event.PaymentID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing payment_id", Code: "invalid_body"})
		return
	}

	switch event.Event {
	case eventPaymentCompleted:
		if _, err := h.completeUC.Execute(r.Context(), event.PaymentID, event.TxID); err != nil {
			writeError(w, err)
			return
		}
	case eventPaymentCancelled:
		if _, err := h.cancelUC.Execute(r.Context(), event.PaymentID); err != nil {
			writeError(w, err)
			return
		}
	default:
		// Unknown event types are acknowledged so the provider stops
		// redelivering them.
		log.Warn().Str("event", event.Event).Msg("ignoring unknown webhook event type")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// verifySignature checks the HMAC-SHA256 signature of the raw body. With no
// secret configured every delivery is accepted; that mode exists for local
// development only and production config validation refuses it.
func (h *WebhookController) verifySignature(body []byte, header string) error {
	if h.secret == "" {
		log.Warn().Msg("webhook signature verification disabled, no secret configured")
		return nil
	}

	provided := strings.TrimPrefix(header, "sha256=")
	if provided == "" {
		return domainErrors.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return domainErrors.ErrInvalidSignature
	}
	return nil
}
