package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a vendor's sellable item. Rows are deactivated, never deleted.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VendorID        uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index;uniqueIndex:uq_products_vendor_catalog,where:square_catalog_id IS NOT NULL"`
	Name            string          `gorm:"column:name;not null"`
	Category        string          `gorm:"column:category;not null;default:''"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Unit            string          `gorm:"column:unit;not null;default:'each'"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	IsSeasonal      bool            `gorm:"column:is_seasonal;not null;default:false"`
	SquareCatalogID *string         `gorm:"column:square_catalog_id;uniqueIndex:uq_products_vendor_catalog,where:square_catalog_id IS NOT NULL"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
