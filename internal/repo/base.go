package repo

import (
	"context"

	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any). A
// transaction carried by ctx wins over the repository's own connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return b.db.WithContext(ctx)
}

// Tenant returns a query already filtered to one vendor's rows. Every tenant
// table read goes through it.
func (b Base) Tenant(ctx context.Context, vendorID uuid.UUID) *gorm.DB {
	return b.DB(ctx).Where("vendor_id = ?", vendorID)
}

// Conn exposes the raw connection, e.g. to hand to WithTx.
func (b Base) Conn() *gorm.DB {
	return b.db
}
