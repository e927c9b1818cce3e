package payment

import (
	"context"
	"fmt"
	"net/http"
)

// OrderParams is the order creation body sent to the gateway.
type OrderParams struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	Notes          map[string]string `json:"notes,omitempty"`
	PaymentCapture int               `json:"payment_capture"`
	Description    string            `json:"description,omitempty"`
}

// GatewayOrder is the subset of the gateway's order entity the service relies on.
type GatewayOrder struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

// Gateway abstracts the upstream payment gateway.
type Gateway interface {
	CreateOrder(ctx context.Context, params OrderParams) (GatewayOrder, error)
}

// GatewayError describes a failed gateway call. Description carries the
// gateway's own human readable reason when one was returned.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Description != "" && e.StatusCode != 0:
		return fmt.Sprintf("gateway: %d %s: %s", e.StatusCode, e.Code, e.Description)
	case e.Description != "":
		return "gateway: " + e.Description
	case e.Err != nil:
		return "gateway: " + e.Err.Error()
	case e.StatusCode != 0:
		return "gateway: " + http.StatusText(e.StatusCode)
	default:
		return "gateway: request failed"
	}
}

// Unwrap exposes the transport error, if any.
func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
