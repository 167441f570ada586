package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultDaysBack = 30
	MaxDaysBack     = 365
	maxComments     = 1000

	// EventRecorded is the Pub/Sub event type emitted after each submission.
	EventRecorded  = "feedback.recorded"
	publishTimeout = 5 * time.Second
)

// Service records actuals and reports accuracy.
type Service interface {
	Submit(ctx context.Context, vendorID uuid.UUID, input SubmitInput) (*FeedbackDTO, error)
	Stats(ctx context.Context, vendorID uuid.UUID, daysBack int) (*Stats, error)
}

type SubmitInput struct {
	RecommendationID      uuid.UUID
	ActualQuantityBrought int
	ActualQuantitySold    int
	ActualRevenue         decimal.Decimal
	Rating                int
	Comments              *string
}

// Stats is the aggregate accuracy report.
type Stats struct {
	AccuracyRate          float64 `json:"accuracy_rate"`
	AvgRating             float64 `json:"avg_rating"`
	OverstockRate         float64 `json:"overstock_rate"`
	UnderstockRate        float64 `json:"understock_rate"`
	AvgVariancePercentage float64 `json:"avg_variance_percentage"`
	TotalFeedback         int64   `json:"total_feedback"`
	DaysBack              int     `json:"days_back"`
}

// Publisher emits feedback events; a nil publisher disables them.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	FeedbackTopic() string
}

type recommendationLookup interface {
	FindByID(ctx context.Context, vendorID, id uuid.UUID) (*models.Recommendation, error)
}

// RecordedEvent is the payload of a feedback.recorded message.
type RecordedEvent struct {
	Event               string    `json:"event"`
	FeedbackID          uuid.UUID `json:"feedback_id"`
	RecommendationID    uuid.UUID `json:"recommendation_id"`
	VendorID            uuid.UUID `json:"vendor_id"`
	RecommendedQuantity int       `json:"recommended_quantity"`
	ActualQuantitySold  int       `json:"actual_quantity_sold"`
	Variance            int       `json:"variance"`
	VariancePercentage  float64   `json:"variance_percentage"`
	WasAccurate         bool      `json:"was_accurate"`
	RecordedAt          time.Time `json:"recorded_at"`
}

type ServiceOption func(*service)

func WithPublisher(p Publisher) ServiceOption {
	return func(s *service) { s.publisher = p }
}

func WithMetrics(m *metrics.RecommendationMetrics) ServiceOption {
	return func(s *service) { s.metrics = m }
}

func WithLogger(logg *logger.Logger) ServiceOption {
	return func(s *service) {
		if logg != nil {
			s.logg = logg
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	recs      recommendationLookup
	publisher Publisher
	metrics   *metrics.RecommendationMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(repo *Repository, dbClient *db.Client, recs recommendationLookup, opts ...ServiceOption) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("feedback repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if recs == nil {
		return nil, fmt.Errorf("recommendation lookup required")
	}
	s := &service{repo: repo, dbClient: dbClient, recs: recs, logg: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit stores actuals for one of the vendor's recommendations. Only the
// first submission is accepted.
func (s *service) Submit(ctx context.Context, vendorID uuid.UUID, input SubmitInput) (*FeedbackDTO, error) {
	if err := validateSubmit(input); err != nil {
		return nil, err
	}
	var (
		rec *models.Recommendation
		fb  *models.Feedback
	)
	err := s.dbClient.TenantScope(ctx, vendorID, func(ctx context.Context) error {
		var err error
		rec, err = s.recs.FindByID(ctx, vendorID, input.RecommendationID)
		if err != nil {
			return err
		}
		v := ComputeVariance(rec.RecommendedQuantity, input.ActualQuantitySold)
		fb = &models.Feedback{
			VendorID:              vendorID,
			RecommendationID:      rec.ID,
			ActualQuantityBrought: input.ActualQuantityBrought,
			ActualQuantitySold:    input.ActualQuantitySold,
			ActualRevenue:         input.ActualRevenue.Round(2),
			Rating:                input.Rating,
			Comments:              trimmed(input.Comments),
			Variance:              v.Units,
			VariancePercentage:    v.Percentage,
			WasAccurate:           v.WasAccurate,
			CreatedAt:             s.now().UTC(),
		}
		return s.repo.Create(ctx, fb)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveFeedback(fb.WasAccurate)
	s.publish(ctx, rec, fb)

	dto := NewFeedbackDTO(*fb, rec.RecommendedQuantity)
	return &dto, nil
}

func validateSubmit(input SubmitInput) error {
	details := map[string]string{}
	if input.RecommendationID == uuid.Nil {
		details["recommendation_id"] = "required"
	}
	if input.ActualQuantityBrought < 0 {
		details["actual_quantity_brought"] = "must be >= 0"
	}
	if input.ActualQuantitySold < 0 {
		details["actual_quantity_sold"] = "must be >= 0"
	}
	if input.ActualQuantitySold > input.ActualQuantityBrought {
		details["actual_quantity_sold"] = "cannot exceed actual_quantity_brought"
	}
	if input.ActualRevenue.IsNegative() {
		details["actual_revenue"] = "must be >= 0"
	}
	if input.Rating < 1 || input.Rating > 5 {
		details["rating"] = "must be between 1 and 5"
	}
	if input.Comments != nil && utf8.RuneCountInString(*input.Comments) > maxComments {
		details["comments"] = fmt.Sprintf("must be at most %d characters", maxComments)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid feedback").WithDetails(details)
	}
	return nil
}

// publish is best effort; the feedback is already committed.
func (s *service) publish(ctx context.Context, rec *models.Recommendation, fb *models.Feedback) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(RecordedEvent{
		Event:               EventRecorded,
		FeedbackID:          fb.ID,
		RecommendationID:    rec.ID,
		VendorID:            fb.VendorID,
		RecommendedQuantity: rec.RecommendedQuantity,
		ActualQuantitySold:  fb.ActualQuantitySold,
		Variance:            fb.Variance,
		VariancePercentage:  fb.VariancePercentage,
		WasAccurate:         fb.WasAccurate,
		RecordedAt:          fb.CreatedAt,
	})
	if err != nil {
		s.logg.Error(ctx, "encode feedback event", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	attrs := map[string]string{"event_type": EventRecorded, "vendor_id": fb.VendorID.String()}
	if _, err := s.publisher.Publish(pubCtx, s.publisher.FeedbackTopic(), payload, attrs); err != nil {
		logCtx := s.logg.WithField(ctx, "feedback_id", fb.ID.String())
		s.logg.Warn(logCtx, "feedback event publish failed: "+err.Error())
	}
}

// Stats reports accuracy over recommendations for the last daysBack days.
// Zero means the default window.
func (s *service) Stats(ctx context.Context, vendorID uuid.UUID, daysBack int) (*Stats, error) {
	if daysBack == 0 {
		daysBack = DefaultDaysBack
	}
	if daysBack < 1 || daysBack > MaxDaysBack {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("days_back must be between 1 and %d", MaxDaysBack))
	}
	today := s.now().UTC()
	since := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysBack)

	stats, err := db.InTenant(ctx, s.dbClient, vendorID, func(ctx context.Context) (Stats, error) {
		return s.repo.Stats(ctx, vendorID, since)
	})
	if err != nil {
		return nil, err
	}
	stats.DaysBack = daysBack
	return &stats, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}
