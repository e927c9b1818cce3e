package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentOrderTotal counts order creation outcomes.
	PaymentOrderTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts checkout signature verification outcomes.
	PaymentVerifyTotal *prometheus.CounterVec
	// GatewayRequestDuration records payment gateway call latency in milliseconds.
	GatewayRequestDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
// Only the first call has any effect.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentOrderTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_order_total",
			Help:      "Count of payment order creation outcomes.",
		}, []string{"currency", "result"}))
		PaymentWebhookTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"event", "result"}))
		PaymentVerifyTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of checkout payment signature verifications by outcome.",
		}, []string{"result"}))
		GatewayRequestDuration = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_ms",
			Help:      "Latency of payment gateway calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation", "result"}))
	})
}

// IncOrder records an order creation outcome when metrics are enabled.
func IncOrder(currency, result string) {
	if PaymentOrderTotal != nil {
		PaymentOrderTotal.WithLabelValues(currency, result).Inc()
	}
}

// IncWebhook records a webhook outcome when metrics are enabled.
func IncWebhook(event, result string) {
	if PaymentWebhookTotal != nil {
		PaymentWebhookTotal.WithLabelValues(event, result).Inc()
	}
}

// IncVerify records a checkout verification outcome when metrics are enabled.
func IncVerify(result string) {
	if PaymentVerifyTotal != nil {
		PaymentVerifyTotal.WithLabelValues(result).Inc()
	}
}

// ObserveGateway records the latency of a gateway call when metrics are enabled.
func ObserveGateway(operation, result string, millis float64) {
	if GatewayRequestDuration != nil {
		GatewayRequestDuration.WithLabelValues(operation, result).Observe(millis)
	}
}
