package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

type pinger interface {
	Ping(context.Context) error
}

// ReadinessCheck is one dependency probed by /health/ready. Optional checks
// are reported but never fail readiness.
type ReadinessCheck struct {
	Name     string
	Pinger   pinger
	Optional bool
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MarketPrep-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MarketPrep-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			result = readinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
		)
		var g errgroup.Group
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			g.Go(func() error {
				err := check.Pinger.Ping(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					result.Checks[check.Name] = "ok"
					return nil
				}
				result.Checks[check.Name] = "unavailable"
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": check.Name, "error": err.Error()}), "health.dependency_unavailable")
				}
				if check.Optional {
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable")
			})
		}
		if err := g.Wait(); err != nil {
			result.Status = "unavailable"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, result)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
