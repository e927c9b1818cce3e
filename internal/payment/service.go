package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/academy-payments/internal/common"
	"github.com/noah-isme/academy-payments/internal/obs"
)

const (
	defaultCurrency    = "INR"
	defaultDescription = "Course Enrollment"
	autoCapture        = 1
)

// OrderRequest is the purchase intent posted by the browser.
type OrderRequest struct {
	Amount      json.RawMessage   `json:"amount"`
	Currency    string            `json:"currency" validate:"omitempty,alpha,len=3"`
	Receipt     string            `json:"receipt" validate:"omitempty,max=40"`
	Notes       map[string]string `json:"notes" validate:"omitempty,max=15,dive,keys,max=256,endkeys,max=256"`
	Description string            `json:"description" validate:"omitempty,max=255"`
}

// Prefill carries the customer details the checkout widget pre-populates.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
	VPA     string `json:"vpa,omitempty"`
}

// OrderResponse is returned to the browser to open the checkout widget.
type OrderResponse struct {
	OrderID     string  `json:"orderId"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Prefill     Prefill `json:"prefill"`
}

// OrderService turns purchase intents into gateway orders.
type OrderService struct {
	Gateway            Gateway
	Validator          *validator.Validate
	DefaultCurrency    string
	DefaultDescription string
	Now                func() time.Time
}

// Create validates the request, creates the gateway order and shapes the checkout response.
// Validation failures are *common.AppError values and never reach the gateway.
func (s *OrderService) Create(ctx context.Context, req OrderRequest) (resp OrderResponse, err error) {
	if s == nil || s.Gateway == nil {
		return OrderResponse{}, errors.New("order service not configured")
	}
	ctx, span := otel.Tracer("payment.OrderService").Start(ctx, "OrderService.Create")
	defer span.End()

	params, err := s.buildParams(req)
	if err != nil {
		obs.IncOrder("none", "invalid")
		return OrderResponse{}, err
	}
	span.SetAttributes(
		attribute.String("payment.currency", params.Currency),
		attribute.Int64("payment.amount_minor", params.Amount),
		attribute.String("payment.receipt", params.Receipt),
	)

	order, err := s.Gateway.CreateOrder(ctx, params)
	if err != nil {
		obs.IncOrder(params.Currency, "gateway_error")
		return OrderResponse{}, err
	}
	obs.IncOrder(params.Currency, "success")

	currency := order.Currency
	if currency == "" {
		currency = params.Currency
	}
	amount := order.Amount
	if amount == 0 {
		amount = params.Amount
	}
	return OrderResponse{
		OrderID:     order.ID,
		Amount:      amount,
		Currency:    currency,
		Description: params.Description,
		Prefill:     buildPrefill(req.Notes),
	}, nil
}

func (s *OrderService) buildParams(req OrderRequest) (OrderParams, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return OrderParams{}, err
	}
	req.Currency = strings.TrimSpace(req.Currency)
	req.Receipt = strings.TrimSpace(req.Receipt)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validate().Struct(req); err != nil {
		return OrderParams{}, validationError(err)
	}

	params := OrderParams{
		Amount:         amount,
		Currency:       strings.ToUpper(req.Currency),
		Receipt:        req.Receipt,
		Notes:          req.Notes,
		PaymentCapture: autoCapture,
		Description:    req.Description,
	}
	if params.Currency == "" {
		params.Currency = s.defaultCurrency()
	}
	if params.Receipt == "" {
		params.Receipt = fmt.Sprintf("receipt_%d", s.now().UnixMilli())
	}
	if params.Description == "" {
		params.Description = s.DefaultDescription
		if params.Description == "" {
			params.Description = defaultDescription
		}
	}
	return params, nil
}

func buildPrefill(notes map[string]string) Prefill {
	var parts []string
	for _, key := range []string{"firstName", "lastName"} {
		if v := strings.TrimSpace(notes[key]); v != "" {
			parts = append(parts, v)
		}
	}
	return Prefill{
		Name:    strings.Join(parts, " "),
		Email:   strings.TrimSpace(notes["email"]),
		Contact: strings.TrimSpace(notes["phoneNumber"]),
		VPA:     strings.TrimSpace(notes["upiId"]),
	}
}

var defaultValidator = validator.New()

func (s *OrderService) validate() *validator.Validate {
	if s.Validator != nil {
		return s.Validator
	}
	return defaultValidator
}

func (s *OrderService) defaultCurrency() string {
	if c := strings.TrimSpace(s.DefaultCurrency); c != "" {
		return strings.ToUpper(c)
	}
	return defaultCurrency
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return common.BadRequest("VALIDATION_FAILED", "Invalid order request.")
	}
	// map entries report as Notes[key]
	field := verrs[0].StructField()
	var msg string
	switch {
	case field == "Currency":
		msg = "Currency must be a 3-letter ISO code."
	case field == "Receipt":
		msg = "Receipt must be at most 40 characters."
	case field == "Description":
		msg = "Description must be at most 255 characters."
	case strings.HasPrefix(field, "Notes"):
		msg = "Notes may hold at most 15 entries of up to 256 characters each."
	default:
		msg = "Invalid order request."
	}
	return common.NewAppError("VALIDATION_FAILED", msg, http.StatusBadRequest, err)
}
