package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is a verified payment gateway notification handed to downstream consumers.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Topic      string          `json:"topic"`
	PaymentID  string          `json:"paymentId"`
	OrderID    string          `json:"orderId,omitempty"`
	Status     string          `json:"status,omitempty"`
	Amount     int64           `json:"amount,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Method     string          `json:"method,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Notifier reacts to emitted events (logging, metrics, forwarding).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus fans events out to every configured notifier.
type Bus struct {
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit stamps the event and dispatches it to all notifiers. Every notifier
// runs even when an earlier one fails; failures are joined.
func (b *Bus) Emit(ctx context.Context, ev Event) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	ev.Topic = strings.TrimSpace(ev.Topic)
	if ev.Topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	payload, err := encodePayload(ev.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev.Payload = payload
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = b.now()
	}

	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

func encodePayload(payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(payload) {
		return nil, errors.New("payload is not valid json")
	}
	return append(json.RawMessage(nil), payload...), nil
}

// LogNotifier writes each event as a structured log line.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	evt := n.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("payment_id", ev.PaymentID).
		Str("status", ev.Status).
		Int64("amount", ev.Amount).
		Str("currency", ev.Currency).
		Time("received_at", ev.ReceivedAt)
	if ev.OrderID != "" {
		evt = evt.Str("order_id", ev.OrderID)
	}
	if ev.Method != "" {
		evt = evt.Str("method", ev.Method)
	}
	evt.Msg("payment_event")
	return nil
}
