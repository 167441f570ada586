package feedback

import (
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeedbackDTO is the API view of recorded actuals.
type FeedbackDTO struct {
	ID                    uuid.UUID       `json:"id"`
	RecommendationID      uuid.UUID       `json:"recommendation_id"`
	RecommendedQuantity   int             `json:"recommended_quantity"`
	ActualQuantityBrought int             `json:"actual_quantity_brought"`
	ActualQuantitySold    int             `json:"actual_quantity_sold"`
	ActualRevenue         decimal.Decimal `json:"actual_revenue"`
	Rating                int             `json:"rating"`
	Comments              *string         `json:"comments,omitempty"`
	Variance              int             `json:"variance"`
	VariancePercentage    float64         `json:"variance_percentage"`
	WasAccurate           bool            `json:"was_accurate"`
	CreatedAt             time.Time       `json:"created_at"`
}

func NewFeedbackDTO(f models.Feedback, recommended int) FeedbackDTO {
	return FeedbackDTO{
		ID:                    f.ID,
		RecommendationID:      f.RecommendationID,
		RecommendedQuantity:   recommended,
		ActualQuantityBrought: f.ActualQuantityBrought,
		ActualQuantitySold:    f.ActualQuantitySold,
		ActualRevenue:         f.ActualRevenue,
		Rating:                f.Rating,
		Comments:              f.Comments,
		Variance:              f.Variance,
		VariancePercentage:    f.VariancePercentage,
		WasAccurate:           f.WasAccurate,
		CreatedAt:             f.CreatedAt,
	}
}
