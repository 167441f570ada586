package vendors

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const uniqueEmailConstraint = "uq_vendors_email"

// tenantTables are erased child-first so foreign keys never block the delete.
var tenantTables = []string{
	"feedback",
	"recommendations",
	"sale_line_items",
	"sales",
	"products",
	"venues",
	"square_connections",
}

// Repository persists vendor accounts.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

// Create inserts a vendor; a taken email is a conflict.
func (r *Repository) Create(ctx context.Context, vendor *models.Vendor) error {
	vendor.Email = NormalizeEmail(vendor.Email)
	err := r.base.DB(ctx).Create(vendor).Error
	if db.IsUniqueViolation(err, uniqueEmailConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create vendor")
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.base.DB(ctx).Where("id = ?", id).First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find vendor")
	}
	return &vendor, nil
}

// FindByEmail returns nil, nil when no vendor uses the email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.base.DB(ctx).Where("email = ?", NormalizeEmail(email)).First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find vendor by email")
	}
	return &vendor, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.base.DB(ctx).Model(&models.Vendor{}).Where("id = ?", id).Update("last_login_at", at.UTC()).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update last login")
	}
	return nil
}

// Erase deletes the vendor and every tenant row it owns. Run it inside the
// vendor's tenant transaction.
func (r *Repository) Erase(ctx context.Context, vendorID uuid.UUID) error {
	conn := r.base.DB(ctx)
	for _, table := range tenantTables {
		if err := conn.Exec("DELETE FROM "+table+" WHERE vendor_id = ?", vendorID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: erase "+table)
		}
	}
	res := conn.Where("id = ?", vendorID).Delete(&models.Vendor{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: erase vendor")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
