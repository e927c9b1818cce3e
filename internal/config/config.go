package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	defaultPort        = "5000"
	defaultBaseURL     = "https://api.razorpay.com"
	defaultCurrency    = "INR"
	defaultDescription = "Course Enrollment"
	defaultBodyLimit   = int64(1 << 20)
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	GatewayTimeout        time.Duration
	GatewayMaxAttempts    int

	OrderDefaultCurrency    string
	OrderDefaultDescription string

	RedisURL        string
	WebhookDedupTTL time.Duration

	BodyLimitBytes         int64
	CORSAllowedOrigins     []string
	SecurityHeadersEnabled bool

	Obs Observability
}

// Observability groups logging, metrics and tracing settings.
type Observability struct {
	LogFormat        string
	LogLevel         string
	EnablePrometheus bool
	MetricsNamespace string
	MetricsBuckets   string
	EnableTracing    bool
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
// Missing gateway secrets are not an error: the affected endpoints reject calls at request time.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv: valueOrDefault(k.String("APP_ENV"), "development"),
		Port:   valueOrDefault(k.String("PORT"), defaultPort),

		RazorpayKeyID:         strings.TrimSpace(k.String("RAZORPAY_KEY_ID")),
		RazorpayKeySecret:     strings.TrimSpace(k.String("RAZORPAY_KEY_SECRET")),
		RazorpayWebhookSecret: strings.TrimSpace(k.String("RAZORPAY_WEBHOOK_SECRET")),
		RazorpayBaseURL:       strings.TrimRight(valueOrDefault(k.String("RAZORPAY_BASE_URL"), defaultBaseURL), "/"),
		GatewayTimeout:        parseDuration(k.String("GATEWAY_TIMEOUT"), "10s"),
		GatewayMaxAttempts:    parsePositiveInt(k.String("GATEWAY_MAX_ATTEMPTS"), 1),

		OrderDefaultCurrency:    strings.ToUpper(valueOrDefault(k.String("ORDER_DEFAULT_CURRENCY"), defaultCurrency)),
		OrderDefaultDescription: valueOrDefault(k.String("ORDER_DEFAULT_DESCRIPTION"), defaultDescription),

		RedisURL:        strings.TrimSpace(k.String("REDIS_URL")),
		WebhookDedupTTL: parseDuration(k.String("WEBHOOK_DEDUP_TTL"), "24h"),

		BodyLimitBytes:         parseInt64(k.String("BODY_LIMIT_BYTES"), defaultBodyLimit),
		CORSAllowedOrigins:     splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		SecurityHeadersEnabled: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),

		Obs: Observability{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "academy"),
			MetricsBuckets:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// GatewayConfigured reports whether both Razorpay API credentials are present.
func (c *Config) GatewayConfigured() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parsePositiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
