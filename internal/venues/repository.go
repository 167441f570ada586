package venues

import (
	"context"
	"errors"

	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists market venues.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

func (r *Repository) Create(ctx context.Context, venue *models.Venue) error {
	if err := r.base.DB(ctx).Create(venue).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create venue")
	}
	return nil
}

// FindByID loads a venue owned by the vendor; foreign ids are NotFound.
func (r *Repository) FindByID(ctx context.Context, vendorID, id uuid.UUID) (*models.Venue, error) {
	var venue models.Venue
	err := r.base.Tenant(ctx, vendorID).Where("id = ?", id).First(&venue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find venue")
	}
	return &venue, nil
}

func (r *Repository) List(ctx context.Context, vendorID uuid.UUID) ([]models.Venue, error) {
	var venues []models.Venue
	if err := r.base.Tenant(ctx, vendorID).Order("name ASC, id ASC").Find(&venues).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list venues")
	}
	return venues, nil
}

// MapBySquareLocation indexes the vendor's venues by Square location id.
func (r *Repository) MapBySquareLocation(ctx context.Context, vendorID uuid.UUID) (map[string]uuid.UUID, error) {
	var venues []models.Venue
	err := r.base.Tenant(ctx, vendorID).Where("square_location_id IS NOT NULL").Find(&venues).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list venue locations")
	}
	out := make(map[string]uuid.UUID, len(venues))
	for _, v := range venues {
		out[*v.SquareLocationID] = v.ID
	}
	return out, nil
}
