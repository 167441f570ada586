package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/marketprep-backend/api/controllers"
	"github.com/angelmondragon/marketprep-backend/api/routes"
	"github.com/angelmondragon/marketprep-backend/internal/app"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/observability"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry, "marketprep-api", cfg.App.Env, logg)
	if err != nil {
		logg.Error(ctx, "failed to init tracing", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logg.Error(flushCtx, "error flushing traces", err)
		}
	}()

	rt, err := app.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap runtime", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logg.Error(context.Background(), "error closing runtime", err)
		}
	}()

	svcs, err := rt.Services()
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	readiness := []controllers.ReadinessCheck{
		{Name: "db", Pinger: rt.DB},
		{Name: "redis", Pinger: rt.Redis},
	}
	if rt.PubSub != nil {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "pubsub", Pinger: rt.PubSub, Optional: true})
	}
	if rt.BigQuery != nil {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "bigquery", Pinger: rt.BigQuery, Optional: true})
	}

	deps := routes.Dependencies{
		Sessions:        svcs.Sessions,
		RateLimiter:     rt.Redis,
		Idempotency:     rt.Redis,
		Readiness:       readiness,
		Gatherer:        rt.Registry,
		HTTPMetrics:     rt.HTTPMetrics,
		Auth:            svcs.Auth,
		Vendors:         svcs.Vendors,
		Products:        svcs.Products,
		Venues:          svcs.Venues,
		Sales:           svcs.Sales,
		Recommendations: svcs.Recommendations,
		Feedback:        svcs.Feedback,
		SquareSync:      svcs.SquareSync,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", err)
	}
	logg.Info(shutdownCtx, "api server stopped")
}
