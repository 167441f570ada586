package recommendations

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListFilter narrows List; zero values mean no filter.
type ListFilter struct {
	MarketDate *time.Time
	VenueID    *uuid.UUID
	Limit      int
}

// Repository persists generated recommendations.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

// CreateBatch inserts all rows of one generation.
func (r *Repository) CreateBatch(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	if err := r.base.DB(ctx).Create(&recs).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create recommendations")
	}
	return nil
}

// FindByID loads one of the vendor's recommendations.
func (r *Repository) FindByID(ctx context.Context, vendorID, id uuid.UUID) (*models.Recommendation, error) {
	var rec models.Recommendation
	err := r.base.Tenant(ctx, vendorID).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recommendation not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find recommendation")
	}
	return &rec, nil
}

// List returns the newest recommendations first; ties break on id so the
// same filter always yields the same rows.
func (r *Repository) List(ctx context.Context, vendorID uuid.UUID, filter ListFilter) ([]models.Recommendation, error) {
	query := r.base.Tenant(ctx, vendorID)
	if filter.MarketDate != nil {
		query = query.Where("market_date = ?", *filter.MarketDate)
	}
	if filter.VenueID != nil {
		query = query.Where("venue_id = ?", *filter.VenueID)
	}
	var recs []models.Recommendation
	err := query.Order("generated_at DESC, id DESC").Limit(filter.Limit).Find(&recs).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list recommendations")
	}
	return recs, nil
}
