package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/api/validators"
	"github.com/angelmondragon/marketprep-backend/internal/recommendations"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/pagination"
)

type generateRecommendationsRequest struct {
	MarketDate string   `json:"market_date" validate:"required,date"`
	VenueID    string   `json:"venue_id" validate:"required,uuid"`
	ProductIDs []string `json:"product_ids" validate:"required,min=1,max=100,unique,dive,uuid"`
}

func (r generateRecommendationsRequest) toInput() recommendations.GenerateInput {
	marketDate, _ := validators.ParseDate(r.MarketDate)
	input := recommendations.GenerateInput{
		MarketDate: marketDate,
		VenueID:    uuid.MustParse(r.VenueID),
		ProductIDs: make([]uuid.UUID, 0, len(r.ProductIDs)),
	}
	for _, raw := range r.ProductIDs {
		input.ProductIDs = append(input.ProductIDs, uuid.MustParse(raw))
	}
	return input
}

// GenerateRecommendations returns 201 with one recommendation per product.
func GenerateRecommendations(svc recommendations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recommendation"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload generateRecommendationsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recs, err := svc.Generate(r.Context(), vendorID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, recs)
	}
}

func ListRecommendations(svc recommendations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recommendation"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		marketDate, err := validators.ParseQueryDate(r, "market_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		venueID, err := validators.ParseQueryUUID(r, "venue_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recs, err := svc.List(r.Context(), vendorID, recommendations.ListInput{
			MarketDate: marketDate,
			VenueID:    venueID,
			Limit:      limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, recs)
	}
}
