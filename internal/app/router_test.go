package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-payments/internal/app"
	"github.com/noah-isme/academy-payments/internal/config"
	"github.com/noah-isme/academy-payments/internal/payment"
)

const testWebhookSecret = "whsec_router"

func testConfig(gatewayURL string) *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		RazorpayKeyID:           "rzp_test_key",
		RazorpayKeySecret:       "rzp_test_secret",
		RazorpayWebhookSecret:   testWebhookSecret,
		RazorpayBaseURL:         gatewayURL,
		GatewayTimeout:          2 * time.Second,
		GatewayMaxAttempts:      1,
		OrderDefaultCurrency:    "INR",
		OrderDefaultDescription: "Course Enrollment",
		WebhookDedupTTL:         time.Hour,
		BodyLimitBytes:          1 << 20,
		CORSAllowedOrigins:      []string{"*"},
		SecurityHeadersEnabled:  true,
		Obs: config.Observability{
			EnablePrometheus: true,
			MetricsNamespace: "router_test",
		},
	}
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	deps, cleanup, err := app.NewDependencies(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	deps.MetricsRegistry = prometheus.NewRegistry()

	srv := httptest.NewServer(app.NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func fakeGateway(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var order map[string]any
		_ = json.NewDecoder(r.Body).Decode(&order)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":       "order_router",
				"entity":   "order",
				"amount":   order["amount"],
				"currency": order["currency"],
				"status":   "created",
			})
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func post(t *testing.T, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestRootBanner(t *testing.T) {
	gw, _ := fakeGateway(t, http.StatusOK, "")
	srv := newServer(t, testConfig(gw.URL))

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Payment service is running.", string(body))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestCreateOrderEndToEnd(t *testing.T) {
	gw, calls := fakeGateway(t, http.StatusOK, "")
	srv := newServer(t, testConfig(gw.URL))

	resp, body := post(t, srv.URL+"/create-order", `{"amount":500,"notes":{"firstName":"A","lastName":"B","email":"a@b.com"}}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "order_router", body["orderId"])
	require.EqualValues(t, 50000, body["amount"])
	require.Equal(t, "A B", body["prefill"].(map[string]any)["name"])
	require.EqualValues(t, 1, calls.Load())
}

func TestCreateOrderInvalidAmountNeverCallsGateway(t *testing.T) {
	gw, calls := fakeGateway(t, http.StatusOK, "")
	srv := newServer(t, testConfig(gw.URL))

	for _, payload := range []string{`{}`, `{"amount":0}`, `{"amount":-3}`, `{"amount":"abc"}`} {
		resp, body := post(t, srv.URL+"/create-order", payload, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
		require.Equal(t, true, body["error"])
	}
	require.Zero(t, calls.Load())
}

func TestCreateOrderUpstreamError(t *testing.T) {
	gw, _ := fakeGateway(t, http.StatusUnauthorized, `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`)
	srv := newServer(t, testConfig(gw.URL))

	resp, body := post(t, srv.URL+"/create-order", `{"amount":100}`, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, true, body["error"])
	require.Equal(t, "Authentication failed", body["message"])
}

func TestCreateOrderWithoutKeys(t *testing.T) {
	gw, calls := fakeGateway(t, http.StatusOK, "")
	cfg := testConfig(gw.URL)
	cfg.RazorpayKeyID = ""
	cfg.RazorpayKeySecret = ""
	srv := newServer(t, cfg)

	resp, body := post(t, srv.URL+"/create-order", `{"amount":100}`, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Payment gateway credentials are not configured.", body["message"])
	require.Zero(t, calls.Load())
}

func TestWebhookEndToEnd(t *testing.T) {
	gw, _ := fakeGateway(t, http.StatusOK, "")
	srv := newServer(t, testConfig(gw.URL))
	payload := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","status":"captured"}}}}`
	sig := payment.Sign(testWebhookSecret, []byte(payload))

	resp, body := post(t, srv.URL+"/razorpay-webhook", payload, map[string]string{"X-Razorpay-Signature": sig})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "success", body["status"])

	altered := sig[:len(sig)-1] + "x"
	resp, body = post(t, srv.URL+"/razorpay-webhook", payload, map[string]string{"X-Razorpay-Signature": altered})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "error", body["status"])
	require.Equal(t, "Invalid signature", body["message"])

	resp, body = post(t, srv.URL+"/razorpay-webhook", payload, map[string]string{"X-Razorpay-Signature": sig})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Webhook already processed.", body["message"])
}

func TestWebhookWithRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	gw, _ := fakeGateway(t, http.StatusOK, "")
	cfg := testConfig(gw.URL)
	cfg.RedisURL = "redis://" + mr.Addr()
	srv := newServer(t, cfg)
	payload := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_r","status":"failed"}}}}`
	sig := payment.Sign(testWebhookSecret, []byte(payload))

	resp, _ := post(t, srv.URL+"/razorpay-webhook", payload, map[string]string{"X-Razorpay-Signature": sig})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, mr.Exists("rzp:wh:payment.failed:pay_r"))

	resp, body := post(t, srv.URL+"/razorpay-webhook", payload, map[string]string{"X-Razorpay-Signature": sig})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Webhook already processed.", body["message"])

	ready, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	require.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestWebhookWithoutSecret(t *testing.T) {
	gw, _ := fakeGateway(t, http.StatusOK, "")
	cfg := testConfig(gw.URL)
	cfg.RazorpayWebhookSecret = ""
	srv := newServer(t, cfg)

	resp, body := post(t, srv.URL+"/razorpay-webhook", `{}`, map[string]string{"X-Razorpay-Signature": "abc"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Webhook secret not configured.", body["message"])
}

func TestBodyLimitApplies(t *testing.T) {
	gw, _ := fakeGateway(t, http.StatusOK, "")
	cfg := testConfig(gw.URL)
	cfg.BodyLimitBytes = 64
	srv := newServer(t, cfg)

	big := `{"amount":10,"description":"` + strings.Repeat("x", 128) + `"}`
	resp, err := http.Post(srv.URL+"/create-order", "application/json", bytes.NewBufferString(big))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	gw, _ := fakeGateway(t, http.StatusOK, "")
	srv := newServer(t, testConfig(gw.URL))

	live, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	_ = live.Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "router_test_http_requests_total")
}
