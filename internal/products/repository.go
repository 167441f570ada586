package product

import (
	"context"
	"errors"

	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists vendor products. Every query is tenant scoped.
type Repository struct {
	base repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if err := r.base.DB(ctx).Create(product).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create product")
	}
	return nil
}

// Save writes every column of an existing product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	if err := r.base.DB(ctx).Save(product).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return nil
}

// FindByID loads one product owned by the vendor.
func (r *Repository) FindByID(ctx context.Context, vendorID, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.base.Tenant(ctx, vendorID).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find product")
	}
	return &product, nil
}

// FindActiveByIDs returns the vendor's active products among ids. Missing,
// foreign and inactive ids are silently absent from the result.
func (r *Repository) FindActiveByIDs(ctx context.Context, vendorID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.base.Tenant(ctx, vendorID).
		Where("id IN ? AND is_active = ?", ids, true).
		Order("name ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find products")
	}
	return products, nil
}

// List returns the vendor's products ordered by name.
func (r *Repository) List(ctx context.Context, vendorID uuid.UUID, includeInactive bool) ([]models.Product, error) {
	query := r.base.Tenant(ctx, vendorID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var products []models.Product
	if err := query.Order("name ASC, id ASC").Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return products, nil
}

// FindBySquareCatalogIDs maps catalog ids to the vendor's products, active or not.
func (r *Repository) FindBySquareCatalogIDs(ctx context.Context, vendorID uuid.UUID, catalogIDs []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(catalogIDs))
	if len(catalogIDs) == 0 {
		return out, nil
	}
	var products []models.Product
	err := r.base.Tenant(ctx, vendorID).
		Where("square_catalog_id IN ?", catalogIDs).
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find products by catalog id")
	}
	for _, p := range products {
		if p.SquareCatalogID != nil {
			out[*p.SquareCatalogID] = p
		}
	}
	return out, nil
}
