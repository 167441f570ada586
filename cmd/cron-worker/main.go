package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/marketprep-backend/internal/app"
	"github.com/angelmondragon/marketprep-backend/internal/cron"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/metrics"
	"github.com/angelmondragon/marketprep-backend/pkg/observability"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry, "marketprep-cron-worker", cfg.App.Env, logg)
	if err != nil {
		logg.Error(ctx, "failed to init tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
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

	registry, err := rt.CronRegistry(svcs)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := newLock(cfg, rt)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(rt.Registry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newLock uses Redis so only one replica runs a tick; sqlite dev runs are
// single-process and take the local lock.
func newLock(cfg *config.Config, rt *app.Runtime) (cron.Lock, error) {
	if cfg.FeatureFlags.UseSQLite {
		return &cron.LocalLock{}, nil
	}
	key := rt.Redis.LockKey(fmt.Sprintf("%s:%s", lockName, envOrLocal(cfg.App.Env)))
	return cron.NewRedisLock(rt.Redis, key, cfg.Cron.LockTTL)
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
