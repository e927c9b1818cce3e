package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/academy-payments/internal/obs"
	"github.com/noah-isme/academy-payments/internal/resilience"
)

const (
	// DefaultRazorpayBaseURL is the production Razorpay API host.
	DefaultRazorpayBaseURL = "https://api.razorpay.com"

	msgCredentialsMissing = "Payment gateway credentials are not configured."
	maxGatewayBody        = 1 << 20
)

// RazorpayConfig configures the Razorpay client.
type RazorpayConfig struct {
	KeyID       string
	KeySecret   string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Breaker     *resilience.Breaker
	Transport   http.RoundTripper
}

// Razorpay implements Gateway against the Razorpay Orders API.
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	http      resilience.HTTPClient
}

// NewRazorpay builds a client whose transport is traced and guarded by a circuit breaker.
func NewRazorpay(cfg RazorpayConfig) *Razorpay {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultRazorpayBaseURL
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("razorpay")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Razorpay{
		keyID:     strings.TrimSpace(cfg.KeyID),
		keySecret: strings.TrimSpace(cfg.KeySecret),
		baseURL:   base,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
			Breaker:     breaker,
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
}

// CreateOrder creates an order through POST /v1/orders.
func (c *Razorpay) CreateOrder(ctx context.Context, params OrderParams) (order GatewayOrder, err error) {
	if c.keyID == "" || c.keySecret == "" {
		return GatewayOrder{}, &GatewayError{Code: "CONFIGURATION_ERROR", Description: msgCredentialsMissing}
	}

	ctx, span := otel.Tracer("payment.Razorpay").Start(ctx, "Razorpay.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.currency", params.Currency),
		attribute.Int64("payment.amount_minor", params.Amount),
	)

	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "create order failed")
		}
		obs.ObserveGateway("create_order", result, obs.DurationMillis(time.Since(start)))
	}()

	payload, err := sonic.Marshal(params)
	if err != nil {
		return GatewayOrder{}, &GatewayError{Err: fmt.Errorf("marshal order: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return GatewayOrder{}, &GatewayError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return GatewayOrder{}, &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBody))
	if err != nil {
		return GatewayOrder{}, &GatewayError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GatewayOrder{}, parseGatewayError(resp.StatusCode, data)
	}

	if err := sonic.Unmarshal(data, &order); err != nil {
		return GatewayOrder{}, &GatewayError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode order: %w", err)}
	}
	if order.ID == "" {
		return GatewayOrder{}, &GatewayError{StatusCode: resp.StatusCode, Err: errors.New("order id missing from response")}
	}
	span.SetAttributes(attribute.String("payment.order_id", order.ID))
	return order, nil
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func parseGatewayError(status int, data []byte) *GatewayError {
	gerr := &GatewayError{StatusCode: status}
	var body razorpayErrorBody
	if err := sonic.Unmarshal(data, &body); err == nil {
		gerr.Code = strings.TrimSpace(body.Error.Code)
		gerr.Description = strings.TrimSpace(body.Error.Description)
	}
	if gerr.Description == "" {
		gerr.Description = http.StatusText(status)
	}
	return gerr
}
