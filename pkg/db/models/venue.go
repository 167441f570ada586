package models

import (
	"time"

	"github.com/google/uuid"
)

// Venue is a market location a vendor attends.
type Venue struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID         uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name             string    `gorm:"column:name;not null"`
	Latitude         float64   `gorm:"column:latitude;not null"`
	Longitude        float64   `gorm:"column:longitude;not null"`
	SquareLocationID *string   `gorm:"column:square_location_id"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
