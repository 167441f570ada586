// Package adapter holds the fetch contract shared by the weather, events and
// Square clients: bounded timeout, bounded retry with backoff, a TTL cache, and
// a degraded result carrying the last known value instead of an error.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/cache"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	OutcomeHit   = "hit"
	OutcomeFresh = "fresh"
	OutcomeStale = "stale"
	OutcomeMiss  = "miss"

	stalePrefix = "stale:"
)

// Result is what callers see. Degraded means the live call failed; Value is
// then the last cached copy (Stale) or nil.
type Result[T any] struct {
	Value     *T
	Degraded  bool
	Stale     bool
	FetchedAt time.Time
}

// Observer receives one outcome per Fetch.
type Observer interface {
	ObserveFetch(adapter, outcome string)
}

// Options bounds one adapter's calls and cache lifetimes.
type Options struct {
	Name       string
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
	TTL        time.Duration
	StaleTTL   time.Duration
}

// Fetcher runs the contract for one adapter and payload type.
type Fetcher[T any] struct {
	opts     Options
	store    cache.Store
	logg     *logger.Logger
	now      func() time.Time
	observer Observer
	group    singleflight.Group
}

// FetcherOption customizes a Fetcher.
type FetcherOption[T any] func(*Fetcher[T])

// WithClock overrides the time source used for FetchedAt.
func WithClock[T any](now func() time.Time) FetcherOption[T] {
	return func(f *Fetcher[T]) {
		if now != nil {
			f.now = now
		}
	}
}

// WithObserver reports outcomes, typically to Prometheus.
func WithObserver[T any](o Observer) FetcherOption[T] {
	return func(f *Fetcher[T]) {
		f.observer = o
	}
}

func NewFetcher[T any](opts Options, store cache.Store, logg *logger.Logger, options ...FetcherOption[T]) (*Fetcher[T], error) {
	if opts.Name == "" {
		return nil, errors.New("adapter name is required")
	}
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("adapter timeout must be positive")
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if logg == nil {
		logg = logger.Nop()
	}
	f := &Fetcher[T]{
		opts:  opts,
		store: store,
		logg:  logg,
		now:   time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

type envelope[T any] struct {
	Value     *T        `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks an error that retrying cannot fix (bad credentials, 4xx).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Fetch returns the cached value for key, or calls fn under the retry and
// timeout policy. It never returns an error: failures surface as Degraded.
func (f *Fetcher[T]) Fetch(ctx context.Context, key string, fn func(ctx context.Context) (*T, error)) Result[T] {
	ctx, span := otel.Tracer("marketprep/adapter").Start(ctx, "adapter.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("adapter", f.opts.Name), attribute.String("cache_key", key))

	cacheKey := f.opts.Name + ":" + key
	if env, ok := f.read(ctx, cacheKey); ok {
		f.observe(OutcomeHit)
		return Result[T]{Value: env.Value, FetchedAt: env.FetchedAt}
	}

	v, err, _ := f.group.Do(cacheKey, func() (any, error) {
		return f.call(ctx, fn)
	})
	if err == nil {
		env := v.(envelope[T])
		f.write(ctx, cacheKey, env, f.opts.TTL)
		f.write(ctx, stalePrefix+cacheKey, env, f.opts.StaleTTL)
		f.observe(OutcomeFresh)
		return Result[T]{Value: env.Value, FetchedAt: env.FetchedAt}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "adapter degraded")
	warnCtx := f.logg.WithFields(ctx, map[string]any{
		"adapter": f.opts.Name,
		"key":     key,
		"error":   err.Error(),
	})

	if env, ok := f.read(ctx, stalePrefix+cacheKey); ok {
		f.logg.Warn(warnCtx, "adapter degraded; serving last known value")
		f.observe(OutcomeStale)
		return Result[T]{Value: env.Value, Degraded: true, Stale: true, FetchedAt: env.FetchedAt}
	}
	f.logg.Warn(warnCtx, "adapter degraded; no cached value")
	f.observe(OutcomeMiss)
	return Result[T]{Degraded: true}
}

func (f *Fetcher[T]) call(ctx context.Context, fn func(ctx context.Context) (*T, error)) (envelope[T], error) {
	var out *T
	backoff := retry.WithMaxRetries(f.opts.MaxRetries, retry.NewExponential(f.opts.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		val, err := fn(attemptCtx)
		if err != nil {
			var perm permanentError
			if errors.As(err, &perm) {
				return err
			}
			return retry.RetryableError(err)
		}
		out = val
		return nil
	})
	if err != nil {
		return envelope[T]{}, fmt.Errorf("%s fetch: %w", f.opts.Name, err)
	}
	return envelope[T]{Value: out, FetchedAt: f.now().UTC()}, nil
}

func (f *Fetcher[T]) read(ctx context.Context, key string) (envelope[T], bool) {
	raw, ok, err := f.store.Get(ctx, key)
	if err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "key", key), "adapter cache read failed")
		return envelope[T]{}, false
	}
	if !ok {
		return envelope[T]{}, false
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope[T]{}, false
	}
	return env, true
}

func (f *Fetcher[T]) write(ctx context.Context, key string, env envelope[T], ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := f.store.Set(ctx, key, raw, ttl); err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "key", key), "adapter cache write failed")
	}
}

func (f *Fetcher[T]) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveFetch(f.opts.Name, outcome)
	}
}
