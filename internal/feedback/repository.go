package feedback

import (
	"context"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/angelmondragon/marketprep-backend/internal/repo"
	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const uniqueRecommendationConstraint = "uq_feedback_recommendation"

// Repository persists feedback and runs the accuracy aggregates.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(tx)}
}

// Create inserts the feedback. A second row for the same recommendation is a
// state conflict.
func (r *Repository) Create(ctx context.Context, fb *models.Feedback) error {
	err := r.base.DB(ctx).Create(fb).Error
	if db.IsUniqueViolation(err, uniqueRecommendationConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "feedback already submitted for this recommendation").
			WithDetails(map[string]any{"recommendation_id": fb.RecommendationID})
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create feedback")
	}
	return nil
}

type statsRow struct {
	Total                 int64
	AccuracyRate          float64
	AvgRating             float64
	OverstockRate         float64
	UnderstockRate        float64
	AvgVariancePercentage float64
}

// StatsQuery builds the aggregate over feedback joined to recommendations
// whose market date is on or after since.
func StatsQuery(vendorID uuid.UUID, since time.Time) (string, []any, error) {
	return sq.Select(
		"COUNT(*) AS total",
		"COALESCE(AVG(CASE WHEN f.was_accurate THEN 1.0 ELSE 0.0 END), 0) AS accuracy_rate",
		"COALESCE(AVG(f.rating * 1.0), 0) AS avg_rating",
		"COALESCE(AVG(f.variance_percentage), 0) AS avg_variance_percentage",
	).
		Column(sq.Expr("COALESCE(AVG(CASE WHEN f.variance_percentage < ? THEN 1.0 ELSE 0.0 END), 0) AS overstock_rate", -AccuracyBand)).
		Column(sq.Expr("COALESCE(AVG(CASE WHEN f.variance_percentage > ? THEN 1.0 ELSE 0.0 END), 0) AS understock_rate", AccuracyBand)).
		From("feedback f").
		Join("recommendations r ON r.id = f.recommendation_id").
		Where(sq.Eq{"f.vendor_id": vendorID, "r.vendor_id": vendorID}).
		Where(sq.GtOrEq{"r.market_date": since}).
		PlaceholderFormat(sq.Question).
		ToSql()
}

// Stats aggregates the vendor's feedback. No rows yields all zeros.
func (r *Repository) Stats(ctx context.Context, vendorID uuid.UUID, since time.Time) (Stats, error) {
	query, args, err := StatsQuery(vendorID, since)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build stats query")
	}
	var row statsRow
	if err := r.base.DB(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: feedback stats")
	}
	return Stats{
		AccuracyRate:          round(row.AccuracyRate, 4),
		AvgRating:             round(row.AvgRating, 2),
		OverstockRate:         round(row.OverstockRate, 4),
		UnderstockRate:        round(row.UnderstockRate, 4),
		AvgVariancePercentage: round(row.AvgVariancePercentage, 2),
		TotalFeedback:         row.Total,
	}, nil
}

// ExportRow is one feedback row with the recommendation it scores.
type ExportRow struct {
	Feedback       models.Feedback
	Recommendation models.Recommendation
}

// ListUnexported returns feedback not yet shipped to the training warehouse,
// oldest first, across all vendors. Callers run it in a system transaction.
func (r *Repository) ListUnexported(ctx context.Context, limit int) ([]ExportRow, error) {
	var fbs []models.Feedback
	err := r.base.DB(ctx).
		Where("exported_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&fbs).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list unexported feedback")
	}
	if len(fbs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(fbs))
	for _, fb := range fbs {
		ids = append(ids, fb.RecommendationID)
	}
	var recs []models.Recommendation
	if err := r.base.DB(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load exported recommendations")
	}
	byID := make(map[uuid.UUID]models.Recommendation, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}

	out := make([]ExportRow, 0, len(fbs))
	for _, fb := range fbs {
		rec, ok := byID[fb.RecommendationID]
		if !ok {
			continue
		}
		out = append(out, ExportRow{Feedback: fb, Recommendation: rec})
	}
	return out, nil
}

// MarkExported stamps exported_at on the given feedback rows.
func (r *Repository) MarkExported(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.base.DB(ctx).
		Model(&models.Feedback{}).
		Where("id IN ?", ids).
		Update("exported_at", at.UTC()).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark feedback exported")
	}
	return nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
