package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/academy-payments/internal/app"
	"github.com/noah-isme/academy-payments/internal/config"
	"github.com/noah-isme/academy-payments/internal/health"
	"github.com/noah-isme/academy-payments/internal/obs"
)

const (
	serviceName     = "academy-payments"
	shutdownTimeout = 15 * time.Second
	drainDelay      = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.EnableTracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("init tracer")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	deps, cleanup, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("wire dependencies")
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           app.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server exited unexpectedly")
			return
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown requested")
	health.SetReady(false)
	time.Sleep(drainDelay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}
