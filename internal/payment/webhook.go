package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/academy-payments/internal/common"
	"github.com/noah-isme/academy-payments/internal/events"
	"github.com/noah-isme/academy-payments/internal/obs"
)

// SignatureHeader carries the gateway's HMAC of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

const (
	msgWebhookSecretMissing = "Webhook secret not configured."
	msgInvalidSignature     = "Invalid signature"
	msgMalformedWebhook     = "Malformed webhook payload."
	msgWebhookProcessed     = "Webhook received and processed."
	msgWebhookDuplicate     = "Webhook already processed."
	msgWebhookFailed        = "Webhook processing failed."
	msgUnreadableBody       = "Unable to read request body."
)

// Webhook authenticates gateway callbacks and forwards verified events to the bus.
type Webhook struct {
	Secret   string
	Guard    ReplayGuard
	DedupTTL time.Duration
	Events   *events.Bus
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *entityWrapper `json:"payment"`
		Order   *entityWrapper `json:"order"`
	} `json:"payload"`
}

type entityWrapper struct {
	Entity json.RawMessage `json:"entity"`
}

type paymentEntity struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
}

// Handle verifies the signature over the exact bytes received before anything is parsed.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	if h.Secret == "" {
		logger.Error().Msg("webhook secret not configured")
		obs.IncWebhook("unknown", "misconfigured")
		common.JSONStatus(w, http.StatusInternalServerError, "error", msgWebhookSecretMissing)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.JSONStatus(w, http.StatusRequestEntityTooLarge, "error", "Request body too large.")
			return
		}
		common.JSONStatus(w, http.StatusBadRequest, "error", msgUnreadableBody)
		return
	}
	digest := common.Sha256Hex(body)

	if !VerifySignature(h.Secret, body, r.Header.Get(SignatureHeader)) {
		logger.Warn().Str("body_sha256", digest).Msg("webhook signature rejected")
		obs.IncWebhook("unknown", "invalid_signature")
		common.JSONStatus(w, http.StatusBadRequest, "error", msgInvalidSignature)
		return
	}

	ev, err := parseWebhook(body)
	if err != nil {
		logger.Warn().Err(err).Str("body_sha256", digest).Msg("webhook payload rejected")
		obs.IncWebhook("unknown", "malformed")
		common.JSONStatus(w, http.StatusBadRequest, "error", msgMalformedWebhook)
		return
	}
	label := events.MetricLabel(ev.Topic)

	ctx, span := otel.Tracer("payment.Webhook").Start(ctx, "Webhook.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.event", ev.Topic),
		attribute.String("payment.id", ev.PaymentID),
	)

	key := dedupKey(ev.Topic, ev.PaymentID)
	claimed := false
	if h.Guard != nil && h.DedupTTL > 0 {
		acquired, guardErr := h.Guard.Acquire(ctx, key, h.DedupTTL)
		switch {
		case guardErr != nil:
			logger.Warn().Err(guardErr).Str("dedup_key", key).Msg("webhook dedup unavailable, processing anyway")
		case !acquired:
			logger.Info().Str("event", ev.Topic).Str("payment_id", ev.PaymentID).Msg("duplicate webhook acknowledged")
			obs.IncWebhook(label, "duplicate")
			common.JSONStatus(w, http.StatusOK, "success", msgWebhookDuplicate)
			return
		default:
			claimed = true
		}
	}

	if _, err := h.Events.Emit(ctx, ev); err != nil {
		logger.Error().Err(err).Str("event", ev.Topic).Str("payment_id", ev.PaymentID).Msg("webhook emit failed")
		if claimed {
			if relErr := h.Guard.Release(context.WithoutCancel(ctx), key); relErr != nil {
				logger.Warn().Err(relErr).Str("dedup_key", key).Msg("release dedup key")
			}
		}
		obs.IncWebhook(label, "error")
		common.JSONStatus(w, http.StatusInternalServerError, "error", msgWebhookFailed)
		return
	}

	logger.Info().
		Str("event", ev.Topic).
		Str("payment_id", ev.PaymentID).
		Str("status", ev.Status).
		Str("body_sha256", digest).
		Msg("webhook processed")
	obs.IncWebhook(label, "success")
	common.JSONStatus(w, http.StatusOK, "success", msgWebhookProcessed)
}

func parseWebhook(body []byte) (events.Event, error) {
	var env webhookEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return events.Event{}, err
	}
	topic := strings.TrimSpace(env.Event)
	if topic == "" {
		return events.Event{}, errors.New("event type missing")
	}
	if env.Payload.Payment == nil || isEmptyJSON(env.Payload.Payment.Entity) {
		return events.Event{}, errors.New("payment entity missing")
	}
	var payment paymentEntity
	if err := sonic.Unmarshal(env.Payload.Payment.Entity, &payment); err != nil {
		return events.Event{}, err
	}
	if strings.TrimSpace(payment.ID) == "" {
		return events.Event{}, errors.New("payment id missing")
	}

	orderID := payment.OrderID
	if orderID == "" && env.Payload.Order != nil && !isEmptyJSON(env.Payload.Order.Entity) {
		var order struct {
			ID string `json:"id"`
		}
		if err := sonic.Unmarshal(env.Payload.Order.Entity, &order); err == nil {
			orderID = order.ID
		}
	}

	return events.Event{
		Topic:     topic,
		PaymentID: payment.ID,
		OrderID:   orderID,
		Status:    payment.Status,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Method:    payment.Method,
		Payload:   append(json.RawMessage(nil), env.Payload.Payment.Entity...),
	}, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func dedupKey(event, paymentID string) string {
	return "rzp:wh:" + event + ":" + paymentID
}
