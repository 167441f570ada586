package venues

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service manages the markets a vendor sells at.
type Service interface {
	CreateVenue(ctx context.Context, vendorID uuid.UUID, input CreateVenueInput) (*VenueDTO, error)
	ListVenues(ctx context.Context, vendorID uuid.UUID) ([]VenueDTO, error)
}

type CreateVenueInput struct {
	Name             string
	Latitude         float64
	Longitude        float64
	SquareLocationID *string
}

type VenueDTO struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	SquareLocationID *string   `json:"square_location_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewVenueDTO(v models.Venue) VenueDTO {
	return VenueDTO{
		ID:               v.ID,
		Name:             v.Name,
		Latitude:         v.Latitude,
		Longitude:        v.Longitude,
		SquareLocationID: v.SquareLocationID,
		CreatedAt:        v.CreatedAt,
	}
}

type service struct {
	repo *Repository
	db   *db.Client
}

func NewService(repo *Repository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("venue repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: dbClient}, nil
}

func (s *service) CreateVenue(ctx context.Context, vendorID uuid.UUID, input CreateVenueInput) (*VenueDTO, error) {
	return db.InTenant(ctx, s.db, vendorID, func(ctx context.Context) (*VenueDTO, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
		}
		var location *string
		if input.SquareLocationID != nil && strings.TrimSpace(*input.SquareLocationID) != "" {
			trimmed := strings.TrimSpace(*input.SquareLocationID)
			location = &trimmed
		}

		venue := &models.Venue{
			VendorID:         vendorID,
			Name:             name,
			Latitude:         input.Latitude,
			Longitude:        input.Longitude,
			SquareLocationID: location,
		}
		if err := s.repo.Create(ctx, venue); err != nil {
			return nil, err
		}
		dto := NewVenueDTO(*venue)
		return &dto, nil
	})
}

func (s *service) ListVenues(ctx context.Context, vendorID uuid.UUID) ([]VenueDTO, error) {
	return db.InTenant(ctx, s.db, vendorID, func(ctx context.Context) ([]VenueDTO, error) {
		venues, err := s.repo.List(ctx, vendorID)
		if err != nil {
			return nil, err
		}
		out := make([]VenueDTO, 0, len(venues))
		for _, v := range venues {
			out = append(out, NewVenueDTO(v))
		}
		return out, nil
	})
}
