package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SquareConnection holds a vendor's encrypted Square OAuth tokens.
type SquareConnection struct {
	ID                uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	VendorID          uuid.UUID                    `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:uq_square_connections_vendor"`
	MerchantID        string                       `gorm:"column:merchant_id;not null"`
	AccessToken       string                       `gorm:"column:access_token_ciphertext;not null"`
	RefreshToken      string                       `gorm:"column:refresh_token_ciphertext;not null"`
	ExpiresAt         time.Time                    `gorm:"column:expires_at;not null"`
	LocationIDs       datatypes.JSONType[[]string] `gorm:"column:location_ids;type:jsonb;not null"`
	LastCatalogSyncAt *time.Time                   `gorm:"column:last_catalog_sync_at"`
	LastSalesSyncAt   *time.Time                   `gorm:"column:last_sales_sync_at"`
	CreatedAt         time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}
