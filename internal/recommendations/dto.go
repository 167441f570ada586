package recommendations

import (
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/predictor"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of market dates.
const DateLayout = "2006-01-02"

// RecommendationDTO is the API view of one recommendation.
type RecommendationDTO struct {
	ID                   uuid.UUID              `json:"id"`
	ProductID            uuid.UUID              `json:"product_id"`
	VenueID              uuid.UUID              `json:"venue_id"`
	MarketDate           string                 `json:"market_date"`
	RecommendedQuantity  int                    `json:"recommended_quantity"`
	ConfidenceScore      float64                `json:"confidence_score"`
	ConfidenceLevel      enums.ConfidenceLevel  `json:"confidence_level"`
	PredictedRevenue     decimal.Decimal        `json:"predicted_revenue"`
	Weather              *types.WeatherSnapshot `json:"weather"`
	Events               *types.EventSnapshot   `json:"events"`
	IsSpecialEvent       bool                   `json:"is_special_event"`
	Degraded             bool                   `json:"degraded"`
	Source               string                 `json:"source"`
	ModelVersion         string                 `json:"model_version"`
	FeatureSchemaVersion string                 `json:"feature_schema_version"`
	GeneratedAt          time.Time              `json:"generated_at"`
}

// NewRecommendationDTO maps the model to its API view.
func NewRecommendationDTO(r models.Recommendation) RecommendationDTO {
	source := predictor.SourceModel
	if strings.HasPrefix(r.ModelVersion, "heuristic") {
		source = predictor.SourceHeuristic
	}
	return RecommendationDTO{
		ID:                   r.ID,
		ProductID:            r.ProductID,
		VenueID:              r.VenueID,
		MarketDate:           r.MarketDate.UTC().Format(DateLayout),
		RecommendedQuantity:  r.RecommendedQuantity,
		ConfidenceScore:      r.ConfidenceScore,
		ConfidenceLevel:      r.ConfidenceLevel,
		PredictedRevenue:     r.PredictedRevenue,
		Weather:              r.Weather.Data(),
		Events:               r.Events.Data(),
		IsSpecialEvent:       r.IsSpecialEvent,
		Degraded:             r.Degraded,
		Source:               source,
		ModelVersion:         r.ModelVersion,
		FeatureSchemaVersion: r.FeatureSchema,
		GeneratedAt:          r.GeneratedAt.UTC(),
	}
}
