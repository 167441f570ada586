package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/internal/squaresync"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

// SquareSync runs a catalog and sales sync for the caller. A degraded Square
// API still returns 200 with degraded set.
func SquareSync(svc squaresync.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("square sync"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Sync(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
