package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-payments/internal/payment"
	"github.com/noah-isme/academy-payments/internal/resilience"
)

type capturedOrder struct {
	path     string
	user     string
	pass     string
	hasAuth  bool
	body     map[string]any
	requests atomic.Int32
}

func newFakeRazorpay(t *testing.T, status int, response string) (*httptest.Server, *capturedOrder) {
	t.Helper()
	captured := &capturedOrder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.requests.Add(1)
		captured.path = r.URL.Path
		captured.user, captured.pass, captured.hasAuth = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestRazorpayCreateOrder(t *testing.T) {
	srv, captured := newFakeRazorpay(t, http.StatusOK, `{"id":"order_123","entity":"order","amount":50000,"amount_paid":0,"currency":"INR","receipt":"r1","status":"created","notes":[],"created_at":1700000000}`)
	client := payment.NewRazorpay(payment.RazorpayConfig{KeyID: "rzp_test", KeySecret: "shh", BaseURL: srv.URL + "/"})

	order, err := client.CreateOrder(context.Background(), payment.OrderParams{
		Amount:         50000,
		Currency:       "INR",
		Receipt:        "r1",
		Notes:          map[string]string{"email": "a@b.com"},
		PaymentCapture: 1,
		Description:    "Course Enrollment",
	})
	require.NoError(t, err)
	require.Equal(t, "order_123", order.ID)
	require.Equal(t, int64(50000), order.Amount)
	require.Equal(t, "created", order.Status)

	require.Equal(t, "/v1/orders", captured.path)
	require.True(t, captured.hasAuth)
	require.Equal(t, "rzp_test", captured.user)
	require.Equal(t, "shh", captured.pass)
	require.EqualValues(t, 50000, captured.body["amount"])
	require.EqualValues(t, 1, captured.body["payment_capture"])
	require.Equal(t, "r1", captured.body["receipt"])
	require.Equal(t, map[string]any{"email": "a@b.com"}, captured.body["notes"])
}

func TestRazorpayCreateOrderSurfacesGatewayDescription(t *testing.T) {
	srv, _ := newFakeRazorpay(t, http.StatusUnauthorized, `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`)
	client := payment.NewRazorpay(payment.RazorpayConfig{KeyID: "bad", KeySecret: "bad", BaseURL: srv.URL})

	_, err := client.CreateOrder(context.Background(), payment.OrderParams{Amount: 100, Currency: "INR", Receipt: "r"})
	var gerr *payment.GatewayError
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, http.StatusUnauthorized, gerr.StatusCode)
	require.Equal(t, "BAD_REQUEST_ERROR", gerr.Code)
	require.Equal(t, "Authentication failed", gerr.Description)
}

func TestRazorpayCreateOrderFallsBackToStatusText(t *testing.T) {
	srv, _ := newFakeRazorpay(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	client := payment.NewRazorpay(payment.RazorpayConfig{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})

	_, err := client.CreateOrder(context.Background(), payment.OrderParams{Amount: 100, Currency: "INR", Receipt: "r"})
	var gerr *payment.GatewayError
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, http.StatusBadGateway, gerr.StatusCode)
	require.Equal(t, http.StatusText(http.StatusBadGateway), gerr.Description)
}

func TestRazorpayCreateOrderWithoutCredentials(t *testing.T) {
	srv, captured := newFakeRazorpay(t, http.StatusOK, `{"id":"order_1"}`)
	client := payment.NewRazorpay(payment.RazorpayConfig{BaseURL: srv.URL})

	_, err := client.CreateOrder(context.Background(), payment.OrderParams{Amount: 100, Currency: "INR", Receipt: "r"})
	var gerr *payment.GatewayError
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, "Payment gateway credentials are not configured.", gerr.Description)
	require.Zero(t, captured.requests.Load())
}

func TestRazorpayCreateOrderOpenCircuit(t *testing.T) {
	srv, captured := newFakeRazorpay(t, http.StatusOK, `{"id":"order_1"}`)
	breaker := resilience.NewBreaker(1, 1, time.Minute)
	breaker.Report(context.Background(), false)
	client := payment.NewRazorpay(payment.RazorpayConfig{KeyID: "k", KeySecret: "s", BaseURL: srv.URL, Breaker: breaker})

	_, err := client.CreateOrder(context.Background(), payment.OrderParams{Amount: 100, Currency: "INR", Receipt: "r"})
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	var gerr *payment.GatewayError
	require.True(t, errors.As(err, &gerr))
	require.Empty(t, gerr.Description)
	require.Zero(t, captured.requests.Load())
}

func TestRazorpayCreateOrderRejectsResponseWithoutID(t *testing.T) {
	srv, _ := newFakeRazorpay(t, http.StatusOK, `{"entity":"order"}`)
	client := payment.NewRazorpay(payment.RazorpayConfig{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})

	_, err := client.CreateOrder(context.Background(), payment.OrderParams{Amount: 100, Currency: "INR", Receipt: "r"})
	require.Error(t, err)
}
