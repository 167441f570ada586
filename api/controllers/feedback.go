package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/api/validators"
	"github.com/angelmondragon/marketprep-backend/internal/feedback"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const (
	defaultStatsDaysBack = 30
	maxStatsDaysBack     = 365
)

type submitFeedbackRequest struct {
	RecommendationID      string  `json:"recommendation_id" validate:"required,uuid"`
	ActualQuantityBrought *int    `json:"actual_quantity_brought" validate:"required,gte=0"`
	ActualQuantitySold    *int    `json:"actual_quantity_sold" validate:"required,gte=0"`
	ActualRevenue         string  `json:"actual_revenue" validate:"required,money"`
	Rating                int     `json:"rating" validate:"required,min=1,max=5"`
	Comments              *string `json:"comments,omitempty" validate:"omitempty,max=1000"`
}

func (r submitFeedbackRequest) toInput() (feedback.SubmitInput, error) {
	revenue, err := parseMoney("actual_revenue", r.ActualRevenue)
	if err != nil {
		return feedback.SubmitInput{}, err
	}
	return feedback.SubmitInput{
		RecommendationID:      uuid.MustParse(r.RecommendationID),
		ActualQuantityBrought: *r.ActualQuantityBrought,
		ActualQuantitySold:    *r.ActualQuantitySold,
		ActualRevenue:         revenue,
		Rating:                r.Rating,
		Comments:              r.Comments,
	}, nil
}

// SubmitFeedback records actuals against a recommendation and returns 201.
func SubmitFeedback(svc feedback.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("feedback"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitFeedbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fb, err := svc.Submit(r.Context(), vendorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, fb)
	}
}

func FeedbackStats(svc feedback.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("feedback"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		daysBack, err := validators.ParseQueryInt(r, "days_back", defaultStatsDaysBack, 1, maxStatsDaysBack)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Stats(r.Context(), vendorID, daysBack)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
