package models

import (
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Recommendation is immutable once written.
type Recommendation struct {
	ID                  uuid.UUID                                  `gorm:"column:id;type:uuid;primaryKey"`
	VendorID            uuid.UUID                                  `gorm:"column:vendor_id;type:uuid;not null;index:idx_recommendations_vendor_generated,priority:1"`
	ProductID           uuid.UUID                                  `gorm:"column:product_id;type:uuid;not null"`
	VenueID             uuid.UUID                                  `gorm:"column:venue_id;type:uuid;not null"`
	MarketDate          time.Time                                  `gorm:"column:market_date;type:date;not null"`
	RecommendedQuantity int                                        `gorm:"column:recommended_quantity;not null"`
	ConfidenceScore     float64                                    `gorm:"column:confidence_score;not null"`
	ConfidenceLevel     enums.ConfidenceLevel                      `gorm:"column:confidence_level;not null"`
	PredictedRevenue    decimal.Decimal                            `gorm:"column:predicted_revenue;type:numeric(12,2);not null"`
	Weather             datatypes.JSONType[*types.WeatherSnapshot] `gorm:"column:weather;type:jsonb;not null"`
	Events              datatypes.JSONType[*types.EventSnapshot]   `gorm:"column:events;type:jsonb;not null"`
	IsSpecialEvent      bool                                       `gorm:"column:is_special_event;not null;default:false"`
	Degraded            bool                                       `gorm:"column:degraded;not null;default:false"`
	ModelVersion        string                                     `gorm:"column:model_version;not null"`
	FeatureSchema       string                                     `gorm:"column:feature_schema_version;not null"`
	Features            datatypes.JSONType[[]float64]              `gorm:"column:features;type:jsonb;not null"`
	GeneratedAt         time.Time                                  `gorm:"column:generated_at;not null;index:idx_recommendations_vendor_generated,priority:2"`
}
