package squaresync

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores one Square connection per vendor.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

// FindByVendor returns nil, nil when the vendor never linked Square.
func (r *Repository) FindByVendor(ctx context.Context, vendorID uuid.UUID) (*models.SquareConnection, error) {
	var conn models.SquareConnection
	err := r.base.Tenant(ctx, vendorID).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find square connection")
	}
	return &conn, nil
}

// Upsert replaces the vendor's tokens and locations, keeping sync watermarks.
func (r *Repository) Upsert(ctx context.Context, conn *models.SquareConnection) error {
	err := r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"merchant_id",
			"access_token_ciphertext",
			"refresh_token_ciphertext",
			"expires_at",
			"location_ids",
			"updated_at",
		}),
	}).Create(conn).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert square connection")
	}
	return nil
}

func (r *Repository) UpdateTokens(ctx context.Context, vendorID uuid.UUID, accessCipher, refreshCipher string, expiresAt time.Time) error {
	err := r.base.Tenant(ctx, vendorID).Model(&models.SquareConnection{}).Updates(map[string]any{
		"access_token_ciphertext":  accessCipher,
		"refresh_token_ciphertext": refreshCipher,
		"expires_at":               expiresAt.UTC(),
	}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update square tokens")
	}
	return nil
}

func (r *Repository) MarkSynced(ctx context.Context, vendorID uuid.UUID, catalogAt, salesAt *time.Time) error {
	updates := map[string]any{}
	if catalogAt != nil {
		updates["last_catalog_sync_at"] = catalogAt.UTC()
	}
	if salesAt != nil {
		updates["last_sales_sync_at"] = salesAt.UTC()
	}
	if len(updates) == 0 {
		return nil
	}
	err := r.base.Tenant(ctx, vendorID).Model(&models.SquareConnection{}).Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark square sync")
	}
	return nil
}

// ListVendorIDs spans tenants; call it inside a system transaction.
func (r *Repository) ListVendorIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.base.DB(ctx).Model(&models.SquareConnection{}).Order("vendor_id").Pluck("vendor_id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list square vendors")
	}
	return ids, nil
}
