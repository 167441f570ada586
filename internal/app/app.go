// Package app assembles the shared runtime (database, Redis, adapters, GCP
// clients, metrics) and the domain services on top of it. The api, cron-worker
// and marketprepctl binaries all start here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketprep-backend/internal/auth"
	"github.com/angelmondragon/marketprep-backend/internal/feedback"
	"github.com/angelmondragon/marketprep-backend/internal/predictor"
	product "github.com/angelmondragon/marketprep-backend/internal/products"
	"github.com/angelmondragon/marketprep-backend/internal/recommendations"
	"github.com/angelmondragon/marketprep-backend/internal/sales"
	"github.com/angelmondragon/marketprep-backend/internal/squaresync"
	"github.com/angelmondragon/marketprep-backend/internal/vendors"
	"github.com/angelmondragon/marketprep-backend/internal/venues"
	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/auth/session"
	"github.com/angelmondragon/marketprep-backend/pkg/bigquery"
	"github.com/angelmondragon/marketprep-backend/pkg/cache"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/events"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/metrics"
	"github.com/angelmondragon/marketprep-backend/pkg/migrate"
	"github.com/angelmondragon/marketprep-backend/pkg/pubsub"
	"github.com/angelmondragon/marketprep-backend/pkg/redis"
	"github.com/angelmondragon/marketprep-backend/pkg/security"
	"github.com/angelmondragon/marketprep-backend/pkg/square"
	"github.com/angelmondragon/marketprep-backend/pkg/storage/gcs"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/angelmondragon/marketprep-backend/pkg/weather"
)

// Runtime owns every long-lived client. Optional integrations stay nil when
// their configuration is absent.
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Registry *prometheus.Registry

	Cache          cache.Store
	AdapterMetrics *metrics.AdapterMetrics
	RecMetrics     *metrics.RecommendationMetrics
	HTTPMetrics    *metrics.HTTPMetrics

	Weather  *weather.Client
	Events   *events.Client
	Square   *square.Client
	Cipher   *security.TokenCipher
	Models   *predictor.Loader
	GCS      *gcs.Client
	PubSub   *pubsub.Client
	BigQuery *bigquery.Client

	closers []func() error
}

// New connects the database and Redis and builds every optional client whose
// settings are present.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	rt := &Runtime{Config: cfg, Logger: logg, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.AdapterMetrics = metrics.NewAdapterMetrics(rt.Registry)
	rt.RecMetrics = metrics.NewRecommendationMetrics(rt.Registry)
	rt.HTTPMetrics = metrics.NewHTTPMetrics(rt.Registry)

	if rt.DB, err = db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg); err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	rt.closers = append(rt.closers, rt.DB.Close)

	if err = migrate.MaybeRunDev(ctx, cfg, logg, rt.DB); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	if rt.Redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	rt.closers = append(rt.closers, rt.Redis.Close)

	if rt.Cache, err = cache.NewRedis(rt.Redis); err != nil {
		return nil, err
	}

	if err = rt.buildAdapters(ctx); err != nil {
		return nil, err
	}
	if err = rt.buildGCP(ctx); err != nil {
		return nil, err
	}

	if rt.Models, err = predictor.NewLoader(cfg.Model.Path, gcsObjects(rt.GCS), logg); err != nil {
		return nil, fmt.Errorf("model loader: %w", err)
	}
	if rt.Models.Enabled() {
		if _, err := rt.Models.Reload(ctx); err != nil {
			// Generation falls back to the heuristic until a reload succeeds.
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "initial model load failed")
		}
	}
	return rt, nil
}

func (rt *Runtime) buildAdapters(ctx context.Context) error {
	cfg := rt.Config
	logg := rt.Logger

	if cfg.Weather.APIKey != "" {
		fetcher, err := adapter.NewFetcher(adapter.Options{
			Name:       "weather",
			Timeout:    cfg.Weather.Timeout,
			MaxRetries: cfg.Weather.MaxRetries,
			TTL:        cfg.Weather.CacheTTL,
			StaleTTL:   cfg.Cache.StaleTTL,
		}, rt.Cache, logg, adapter.WithObserver[types.WeatherSnapshot](rt.AdapterMetrics))
		if err != nil {
			return fmt.Errorf("weather fetcher: %w", err)
		}
		if rt.Weather, err = weather.NewClient(cfg.Weather.APIKey, fetcher, weather.WithBaseURL(cfg.Weather.BaseURL)); err != nil {
			return fmt.Errorf("weather client: %w", err)
		}
	} else {
		logg.Warn(ctx, "weather api key not set; recommendations run degraded")
	}

	var eventOpts []events.Option
	eventOpts = append(eventOpts, events.WithBaseURL(cfg.Events.BaseURL), events.WithRadiusMiles(cfg.Events.RadiusMiles))
	if cfg.Events.CalendarPath != "" {
		cal, err := events.LoadCalendar(cfg.Events.CalendarPath)
		if err != nil {
			return fmt.Errorf("events calendar: %w", err)
		}
		eventOpts = append(eventOpts, events.WithCalendar(cal))
	}
	if cfg.Events.APIKey != "" || cfg.Events.CalendarPath != "" {
		var fetcher *adapter.Fetcher[types.EventSnapshot]
		if cfg.Events.APIKey != "" {
			var err error
			fetcher, err = adapter.NewFetcher(adapter.Options{
				Name:       "events",
				Timeout:    cfg.Events.Timeout,
				MaxRetries: cfg.Events.MaxRetries,
				TTL:        cfg.Events.CacheTTL,
				StaleTTL:   cfg.Cache.StaleTTL,
			}, rt.Cache, logg, adapter.WithObserver[types.EventSnapshot](rt.AdapterMetrics))
			if err != nil {
				return fmt.Errorf("events fetcher: %w", err)
			}
		}
		var err error
		if rt.Events, err = events.NewClient(cfg.Events.APIKey, fetcher, eventOpts...); err != nil {
			return fmt.Errorf("events client: %w", err)
		}
	} else {
		logg.Warn(ctx, "events api key and calendar not set; recommendations run degraded")
	}

	catalog, err := adapter.NewFetcher(adapter.Options{
		Name:       "square_catalog",
		Timeout:    cfg.Square.Timeout,
		MaxRetries: cfg.Square.MaxRetries,
		TTL:        cfg.Cache.CatalogTTL,
		StaleTTL:   cfg.Cache.StaleTTL,
	}, rt.Cache, logg, adapter.WithObserver[square.Catalog](rt.AdapterMetrics))
	if err != nil {
		return fmt.Errorf("square catalog fetcher: %w", err)
	}
	if rt.Square, err = square.NewClient(ctx, cfg.Square, logg, square.WithCatalogFetcher(catalog)); err != nil {
		return fmt.Errorf("square client: %w", err)
	}

	if cfg.Encryption.TokenKey != "" {
		if rt.Cipher, err = security.NewTokenCipher(cfg.Encryption.TokenKey); err != nil {
			return fmt.Errorf("token cipher: %w", err)
		}
	} else {
		logg.Warn(ctx, "token encryption key not set; square sync disabled")
	}
	return nil
}

func (rt *Runtime) buildGCP(ctx context.Context) error {
	cfg := rt.Config
	if !cfg.GCP.Enabled() {
		rt.Logger.Info(ctx, "gcp project not set; pubsub, bigquery and gcs disabled")
		return nil
	}
	var err error
	if rt.GCS, err = gcs.NewClient(ctx, cfg.GCP, rt.Logger); err != nil {
		return fmt.Errorf("gcs client: %w", err)
	}
	if rt.PubSub, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, rt.Logger); err != nil {
		return fmt.Errorf("pubsub client: %w", err)
	}
	rt.closers = append(rt.closers, rt.PubSub.Close)
	if rt.BigQuery, err = bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, rt.Logger); err != nil {
		return fmt.Errorf("bigquery client: %w", err)
	}
	rt.closers = append(rt.closers, rt.BigQuery.Close)
	return nil
}

func gcsObjects(c *gcs.Client) predictor.ObjectStore {
	if c == nil {
		return nil
	}
	return c
}

// Close releases clients in reverse construction order.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	rt.closers = nil
	return err
}

// Services is the domain layer wired over a Runtime.
type Services struct {
	Sessions        *session.Manager
	Auth            auth.Service
	Vendors         vendors.Service
	Products        product.Service
	Venues          venues.Service
	Sales           sales.Service
	Recommendations recommendations.Service
	Feedback        feedback.Service
	// SquareSync is nil when no token encryption key is configured.
	SquareSync squaresync.Service

	FeedbackRepo *feedback.Repository
}

// Services builds the domain services.
func (rt *Runtime) Services() (*Services, error) {
	cfg := rt.Config
	conn := rt.DB.DB()

	vendorRepo := vendors.NewRepository(conn)
	productRepo := product.NewRepository(conn)
	venueRepo := venues.NewRepository(conn)
	salesRepo := sales.NewRepository(conn)
	recRepo := recommendations.NewRepository(conn)
	feedbackRepo := feedback.NewRepository(conn)

	out := &Services{FeedbackRepo: feedbackRepo}
	var err error

	if out.Sessions, err = session.NewManager(rt.Redis, cfg.JWT); err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	if out.Auth, err = auth.NewService(auth.ServiceParams{
		VendorRepo:     vendorRepo,
		SessionManager: out.Sessions,
		Hasher:         security.NewPasswordHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		Now:            time.Now,
	}); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if out.Vendors, err = vendors.NewService(vendorRepo, rt.DB); err != nil {
		return nil, fmt.Errorf("vendor service: %w", err)
	}
	if out.Products, err = product.NewService(productRepo, rt.DB); err != nil {
		return nil, fmt.Errorf("product service: %w", err)
	}
	if out.Venues, err = venues.NewService(venueRepo, rt.DB); err != nil {
		return nil, fmt.Errorf("venue service: %w", err)
	}
	if out.Sales, err = sales.NewService(salesRepo, rt.DB, productRepo, venueRepo); err != nil {
		return nil, fmt.Errorf("sales service: %w", err)
	}

	// Typed nil clients must not leak into the interfaces; nil means degraded.
	var weatherSrc recommendations.WeatherSource
	if rt.Weather != nil {
		weatherSrc = rt.Weather
	}
	var eventSrc recommendations.EventSource
	if rt.Events != nil {
		eventSrc = rt.Events
	}
	if out.Recommendations, err = recommendations.NewService(
		recRepo, rt.DB, productRepo, venueRepo, salesRepo, weatherSrc, eventSrc,
		predictor.NewEngine(rt.Models, rt.Logger),
		recommendations.WithMetrics(rt.RecMetrics),
		recommendations.WithLogger(rt.Logger),
	); err != nil {
		return nil, fmt.Errorf("recommendation service: %w", err)
	}

	feedbackOpts := []feedback.ServiceOption{
		feedback.WithMetrics(rt.RecMetrics),
		feedback.WithLogger(rt.Logger),
	}
	if rt.PubSub != nil {
		feedbackOpts = append(feedbackOpts, feedback.WithPublisher(rt.PubSub))
	}
	if out.Feedback, err = feedback.NewService(feedbackRepo, rt.DB, recRepo, feedbackOpts...); err != nil {
		return nil, fmt.Errorf("feedback service: %w", err)
	}

	if rt.Cipher != nil {
		if out.SquareSync, err = squaresync.NewService(squaresync.Params{
			DB:            rt.DB,
			Connections:   squaresync.NewRepository(conn),
			Products:      productRepo,
			Sales:         salesRepo,
			Venues:        venueRepo,
			Square:        rt.Square,
			Cipher:        rt.Cipher,
			Logger:        rt.Logger,
			RefreshSkew:   cfg.Square.RefreshSkew,
			SalesLookback: cfg.Square.SalesLookback,
			Concurrency:   cfg.Cron.SyncConcurrency,
		}); err != nil {
			return nil, fmt.Errorf("square sync service: %w", err)
		}
	}
	return out, nil
}
