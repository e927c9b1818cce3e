package app

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-payments/internal/config"
	"github.com/noah-isme/academy-payments/internal/events"
	"github.com/noah-isme/academy-payments/internal/obs"
	"github.com/noah-isme/academy-payments/internal/payment"
	"github.com/noah-isme/academy-payments/internal/resilience"
)

const sweepInterval = time.Minute

// Dependencies enumerates the services shared by the HTTP handlers.
type Dependencies struct {
	Config          *config.Config
	Logger          zerolog.Logger
	Redis           *redis.Client
	Validator       *validator.Validate
	Gateway         payment.Gateway
	Guard           payment.ReplayGuard
	Events          *events.Bus
	MetricsRegistry *prometheus.Registry
}

// NewDependencies wires the gateway client, dedup guard and event bus from cfg.
// The returned cleanup releases background resources and must be called on shutdown.
func NewDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("app: config is required")
	}
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Validator: validator.New(),
		Events:    &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}}},
	}

	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("razorpay").WithLogger(logger)
	deps.Gateway = payment.NewRazorpay(payment.RazorpayConfig{
		KeyID:       cfg.RazorpayKeyID,
		KeySecret:   cfg.RazorpayKeySecret,
		BaseURL:     cfg.RazorpayBaseURL,
		Timeout:     cfg.GatewayTimeout,
		MaxAttempts: cfg.GatewayMaxAttempts,
		Breaker:     breaker,
	})
	if !cfg.GatewayConfigured() {
		logger.Warn().Msg("razorpay credentials not configured; order creation will fail")
	}
	if cfg.RazorpayWebhookSecret == "" {
		logger.Warn().Msg("razorpay webhook secret not configured; webhooks will be rejected")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		cleanups = append(cleanups, func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis ping failed; webhook dedup will fail open until it recovers")
		}
		deps.Redis = client
		deps.Guard = payment.RedisReplayGuard{Client: client}
	} else {
		guard := payment.NewMemoryReplayGuard()
		sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		go guard.Run(sweepCtx, sweepInterval)
		cleanups = append(cleanups, cancel)
		deps.Guard = guard
	}

	if cfg.Obs.EnablePrometheus {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	return deps, cleanup, nil
}
