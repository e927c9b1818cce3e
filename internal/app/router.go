package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/academy-payments/internal/health"
	"github.com/noah-isme/academy-payments/internal/obs"
	"github.com/noah-isme/academy-payments/internal/payment"
	"github.com/noah-isme/academy-payments/internal/security"
)

// NewRouter assembles the HTTP surface: liveness, health, metrics and the payment endpoints.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Obs.EnableTracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.EnablePrometheus {
		var reg prometheus.Registerer
		if d.MetricsRegistry != nil {
			reg = d.MetricsRegistry
		}
		metrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), reg)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", payment.SignatureHeader},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	probes := map[string]health.Probe{}
	if d.Redis != nil {
		probes["redis"] = func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() }
	}
	healthHandler := health.Handler{Probes: probes, Timeout: 500 * time.Millisecond}
	r.Get("/", healthHandler.Root)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	if cfg.Obs.EnablePrometheus {
		if d.MetricsRegistry != nil {
			r.Handle("/metrics", promhttp.HandlerFor(d.MetricsRegistry, promhttp.HandlerOpts{}))
		} else {
			r.Handle("/metrics", promhttp.Handler())
		}
	}

	checkout := &payment.Handler{
		Orders: &payment.OrderService{
			Gateway:            d.Gateway,
			Validator:          d.Validator,
			DefaultCurrency:    cfg.OrderDefaultCurrency,
			DefaultDescription: cfg.OrderDefaultDescription,
		},
		KeySecret: cfg.RazorpayKeySecret,
		Validator: d.Validator,
	}
	webhook := payment.Webhook{
		Secret:   cfg.RazorpayWebhookSecret,
		Guard:    d.Guard,
		DedupTTL: cfg.WebhookDedupTTL,
		Events:   d.Events,
	}
	r.Post("/create-order", checkout.CreateOrder)
	r.Post("/verify-payment", checkout.VerifyPayment)
	r.Post("/razorpay-webhook", webhook.Handle)

	return r
}
