package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	"github.com/angelmondragon/marketprep-backend/api/validators"
	"github.com/angelmondragon/marketprep-backend/internal/venues"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

type createVenueRequest struct {
	Name             string   `json:"name" validate:"required,max=200"`
	Latitude         *float64 `json:"latitude" validate:"required,latitude"`
	Longitude        *float64 `json:"longitude" validate:"required,longitude"`
	SquareLocationID *string  `json:"square_location_id,omitempty" validate:"omitempty,min=1,max=64"`
}

func ListVenues(svc venues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("venue"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListVenues(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CreateVenue(svc venues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("venue"))
			return
		}
		vendorID, err := vendorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createVenueRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		venue, err := svc.CreateVenue(r.Context(), vendorID, venues.CreateVenueInput{
			Name:             validators.SanitizeString(payload.Name, 200),
			Latitude:         *payload.Latitude,
			Longitude:        *payload.Longitude,
			SquareLocationID: payload.SquareLocationID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, venue)
	}
}
