package models

import (
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is one POS ticket or manual entry. Append-only.
type Sale struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null;index:idx_sales_vendor_date,priority:1;uniqueIndex:uq_sales_vendor_square_order,where:square_order_id IS NOT NULL"`
	VenueID       *uuid.UUID       `gorm:"column:venue_id;type:uuid"`
	SaleDate      time.Time        `gorm:"column:sale_date;not null;index:idx_sales_vendor_date,priority:2"`
	TotalAmount   decimal.Decimal  `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Source        enums.SaleSource `gorm:"column:source;not null"`
	SquareOrderID *string          `gorm:"column:square_order_id;uniqueIndex:uq_sales_vendor_square_order,where:square_order_id IS NOT NULL"`
	LineItems     []SaleLineItem   `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// SaleLineItem keeps the ticket's line order in Position.
type SaleLineItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID    uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	VendorID  uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Position  int             `gorm:"column:position;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}
