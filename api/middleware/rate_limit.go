package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

// VendorRateLimit caps authenticated traffic per vendor. name separates
// budgets, e.g. the general API budget from the generation budget.
func VendorRateLimit(name string, limit int, window time.Duration, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vendorID := VendorIDFromContext(r.Context())
			if vendorID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor context missing"))
				return
			}
			if !checkLimit(r.Context(), w, logg, limiter, "vendor:"+name+":"+vendorID, limit, window) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
