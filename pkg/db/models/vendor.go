package models

import (
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/google/uuid"
)

// Vendor is the tenant root; every other row hangs off vendor_id.
type Vendor struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Email            string                 `gorm:"column:email;not null;uniqueIndex:uq_vendors_email"`
	BusinessName     string                 `gorm:"column:business_name;not null"`
	SubscriptionTier enums.SubscriptionTier `gorm:"column:subscription_tier;not null"`
	PasswordHash     string                 `gorm:"column:password_hash;not null"`
	LastLoginAt      *time.Time             `gorm:"column:last_login_at"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
