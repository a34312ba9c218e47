package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"farmlink-be/internal/logger"
	"farmlink-be/internal/order"
	"farmlink-be/internal/utils"

	"go.uber.org/zap"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, keyed with the shared webhook secret.
const SignatureHeader = "X-Webhook-Signature"

const (
	EventPaid   = "paid"
	EventFailed = "failed"
)

// Event is the provider-agnostic callback payload. Both gateway integrations
// normalize their native formats into this shape before signing.
type Event struct {
	Reference     string     `json:"reference"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type WebhookHandler struct {
	secret []byte
	orders order.Service
}

func NewWebhookHandler(secret string, orders order.Service) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), orders: orders}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "handler"),
		zap.String("method", "PaymentWebhook"),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.WriteJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if !h.verify(body, r.Header.Get(SignatureHeader)) {
		log.Warn("webhook signature mismatch")
		utils.WriteJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		utils.WriteJSONError(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if event.Reference == "" {
		utils.WriteJSONError(w, "missing order reference", http.StatusBadRequest)
		return
	}

	log = log.With(zap.String("reference", event.Reference), zap.String("event_status", event.Status))

	switch event.Status {
	case EventPaid:
		paidAt := time.Now().UTC()
		if event.PaidAt != nil {
			paidAt = *event.PaidAt
		}
		err = h.orders.MarkPaymentPaid(ctx, event.Reference, event.TransactionID, paidAt)
	case EventFailed:
		err = h.orders.MarkPaymentFailed(ctx, event.Reference)
	default:
		utils.WriteJSONError(w, "unknown payment status", http.StatusBadRequest)
		return
	}

	if errors.Is(err, order.ErrOrderNotFound) {
		utils.WriteJSONError(w, "unknown order reference", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("failed to apply payment event", zap.Error(err))
		utils.WriteJSONError(w, "failed to process payment event", http.StatusInternalServerError)
		return
	}

	log.Info("payment event applied")
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the hex signature for a payload. Exposed for tests and for
// the provider simulators used in local development.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
