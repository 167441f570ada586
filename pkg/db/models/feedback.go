package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Feedback records the actuals for exactly one Recommendation.
type Feedback struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VendorID              uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	RecommendationID      uuid.UUID       `gorm:"column:recommendation_id;type:uuid;not null;uniqueIndex:uq_feedback_recommendation"`
	ActualQuantityBrought int             `gorm:"column:actual_quantity_brought;not null"`
	ActualQuantitySold    int             `gorm:"column:actual_quantity_sold;not null"`
	ActualRevenue         decimal.Decimal `gorm:"column:actual_revenue;type:numeric(12,2);not null"`
	Rating                int             `gorm:"column:rating;not null"`
	Comments              *string         `gorm:"column:comments"`
	Variance              int             `gorm:"column:variance;not null"`
	VariancePercentage    float64         `gorm:"column:variance_percentage;type:numeric(10,2);not null"`
	WasAccurate           bool            `gorm:"column:was_accurate;not null"`
	ExportedAt            *time.Time      `gorm:"column:exported_at;index"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Feedback) TableName() string {
	return "feedback"
}
