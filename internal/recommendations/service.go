package recommendations

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/features"
	"github.com/angelmondragon/marketprep-backend/internal/predictor"
	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/events"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/metrics"
	"github.com/angelmondragon/marketprep-backend/pkg/pagination"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/angelmondragon/marketprep-backend/pkg/weather"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxProducts caps one generation request.
const MaxProducts = 100

const tracerName = "github.com/angelmondragon/marketprep-backend/internal/recommendations"

// Service generates and lists demand recommendations.
type Service interface {
	Generate(ctx context.Context, vendorID uuid.UUID, input GenerateInput) ([]RecommendationDTO, error)
	List(ctx context.Context, vendorID uuid.UUID, input ListInput) ([]RecommendationDTO, error)
}

type GenerateInput struct {
	MarketDate time.Time
	VenueID    uuid.UUID
	ProductIDs []uuid.UUID
}

type ListInput struct {
	MarketDate *time.Time
	VenueID    *uuid.UUID
	Limit      int
}

// WeatherSource is the forecast adapter.
type WeatherSource interface {
	Fetch(ctx context.Context, p weather.Params) adapter.Result[types.WeatherSnapshot]
}

// EventSource is the local events adapter.
type EventSource interface {
	Fetch(ctx context.Context, p events.Params) adapter.Result[types.EventSnapshot]
}

// Estimator turns a feature vector into a quantity and confidence.
type Estimator interface {
	Estimate(ctx context.Context, vec features.Vector) predictor.Estimate
}

type productLookup interface {
	FindActiveByIDs(ctx context.Context, vendorID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
}

type venueLookup interface {
	FindByID(ctx context.Context, vendorID, id uuid.UUID) (*models.Venue, error)
}

type salesHistory interface {
	History(ctx context.Context, vendorID uuid.UUID, from, to time.Time) ([]features.SalePoint, error)
}

// ServiceOption customizes optional collaborators.
type ServiceOption func(*service)

// WithMetrics records generation counters.
func WithMetrics(m *metrics.RecommendationMetrics) ServiceOption {
	return func(s *service) { s.metrics = m }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logg *logger.Logger) ServiceOption {
	return func(s *service) {
		if logg != nil {
			s.logg = logg
		}
	}
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	products  productLookup
	venues    venueLookup
	sales     salesHistory
	weather   WeatherSource
	events    EventSource
	estimator Estimator
	metrics   *metrics.RecommendationMetrics
	logg      *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService wires the generation pipeline. Weather and events may be nil;
// generation then runs degraded.
func NewService(repo *Repository, dbClient *db.Client, products productLookup, venues venueLookup, sales salesHistory, weatherSrc WeatherSource, eventSrc EventSource, estimator Estimator, opts ...ServiceOption) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("recommendation repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if venues == nil {
		return nil, fmt.Errorf("venue lookup required")
	}
	if sales == nil {
		return nil, fmt.Errorf("sales history required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("estimator required")
	}
	s := &service{
		repo:      repo,
		dbClient:  dbClient,
		products:  products,
		venues:    venues,
		sales:     sales,
		weather:   weatherSrc,
		events:    eventSrc,
		estimator: estimator,
		logg:      logger.Nop(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate produces and persists one recommendation per product. It never
// fails because weather, events or the model are unavailable.
func (s *service) Generate(ctx context.Context, vendorID uuid.UUID, input GenerateInput) (_ []RecommendationDTO, err error) {
	started := s.now()
	ctx, span := s.tracer.Start(ctx, "recommendations.generate", trace.WithAttributes(
		attribute.String("vendor.id", vendorID.String()),
		attribute.String("venue.id", input.VenueID.String()),
		attribute.Int("products.count", len(input.ProductIDs)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	marketDate, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("market.date", marketDate.Format(DateLayout)))

	var (
		venue    *models.Venue
		products []models.Product
		history  []features.SalePoint
	)
	err = s.dbClient.TenantScope(ctx, vendorID, func(ctx context.Context) error {
		var err error
		if venue, err = s.venues.FindByID(ctx, vendorID, input.VenueID); err != nil {
			return err
		}
		found, err := s.products.FindActiveByIDs(ctx, vendorID, input.ProductIDs)
		if err != nil {
			return err
		}
		if products, err = inRequestOrder(found, input.ProductIDs); err != nil {
			return err
		}
		history, err = s.sales.History(ctx, vendorID, marketDate.Add(-features.HistoryWindow()), marketDate)
		return err
	})
	if err != nil {
		return nil, err
	}

	// External calls run outside the transaction.
	weatherRes, eventsRes := s.marketContext(ctx, venue, marketDate)
	degraded := weatherRes.Degraded || eventsRes.Degraded
	span.SetAttributes(attribute.Bool("degraded", degraded))

	generatedAt := s.now().UTC()
	isSpecial := eventsRes.Value != nil && eventsRes.Value.IsSpecialEvent
	bySource := map[string]int{}
	recs := make([]models.Recommendation, 0, len(products))
	for _, p := range products {
		vec := features.Build(features.Input{
			ProductID:  p.ID,
			VenueID:    venue.ID,
			MarketDate: marketDate,
			Price:      p.Price,
			IsSeasonal: p.IsSeasonal,
			History:    history,
			Weather:    weatherRes.Value,
			Events:     eventsRes.Value,
		})
		est := s.estimator.Estimate(ctx, vec)
		bySource[est.Source]++

		recs = append(recs, models.Recommendation{
			VendorID:            vendorID,
			ProductID:           p.ID,
			VenueID:             venue.ID,
			MarketDate:          marketDate,
			RecommendedQuantity: est.Quantity,
			ConfidenceScore:     est.Score,
			ConfidenceLevel:     est.Level,
			PredictedRevenue:    PredictedRevenue(est.Quantity, p.Price),
			Weather:             datatypes.NewJSONType(weatherRes.Value),
			Events:              datatypes.NewJSONType(eventsRes.Value),
			IsSpecialEvent:      isSpecial,
			Degraded:            degraded,
			ModelVersion:        est.ModelVersion,
			FeatureSchema:       vec.SchemaVersion,
			Features:            datatypes.NewJSONType(vec.Values),
			GeneratedAt:         generatedAt,
		})
	}

	err = s.dbClient.WithTenantTx(ctx, vendorID, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateBatch(ctx, recs)
	})
	if err != nil {
		return nil, err
	}

	for source, n := range bySource {
		s.metrics.ObserveGenerated(source, n)
	}
	if degraded {
		s.metrics.IncDegraded()
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"vendor_id":        vendorID.String(),
			"weather_degraded": weatherRes.Degraded,
			"events_degraded":  eventsRes.Degraded,
		}), "recommendations generated in degraded mode")
	}
	s.metrics.ObserveLatency(s.now().Sub(started))

	out := make([]RecommendationDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewRecommendationDTO(r))
	}
	return out, nil
}

// inRequestOrder lines products up with ids. Any id without a product is
// NotFound.
func inRequestOrder(found []models.Product, ids []uuid.UUID) ([]models.Product, error) {
	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *service) validate(input GenerateInput) (time.Time, error) {
	if input.MarketDate.IsZero() {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "market_date is required")
	}
	marketDate := DateOnly(input.MarketDate)
	if marketDate.Before(DateOnly(s.now())) {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "market_date cannot be in the past")
	}
	if input.VenueID == uuid.Nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "venue_id is required")
	}
	if len(input.ProductIDs) == 0 || len(input.ProductIDs) > MaxProducts {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("between 1 and %d product_ids required", MaxProducts))
	}
	seen := make(map[uuid.UUID]struct{}, len(input.ProductIDs))
	for _, id := range input.ProductIDs {
		if _, dup := seen[id]; dup {
			return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "product_ids must be distinct").
				WithDetails(map[string]any{"product_id": id})
		}
		seen[id] = struct{}{}
	}
	return marketDate, nil
}

// marketContext fetches weather and events in parallel. Adapters absorb their own
// failures, so neither call can fail the group.
func (s *service) marketContext(ctx context.Context, venue *models.Venue, date time.Time) (adapter.Result[types.WeatherSnapshot], adapter.Result[types.EventSnapshot]) {
	weatherRes := adapter.Result[types.WeatherSnapshot]{Degraded: true}
	eventsRes := adapter.Result[types.EventSnapshot]{Degraded: true}

	g, gctx := errgroup.WithContext(ctx)
	if s.weather != nil {
		g.Go(func() error {
			weatherRes = s.weather.Fetch(gctx, weather.Params{Latitude: venue.Latitude, Longitude: venue.Longitude, Date: date})
			return nil
		})
	}
	if s.events != nil {
		g.Go(func() error {
			eventsRes = s.events.Fetch(gctx, events.Params{Latitude: venue.Latitude, Longitude: venue.Longitude, Date: date})
			return nil
		})
	}
	_ = g.Wait()
	return weatherRes, eventsRes
}

func (s *service) List(ctx context.Context, vendorID uuid.UUID, input ListInput) ([]RecommendationDTO, error) {
	filter := ListFilter{VenueID: input.VenueID, Limit: pagination.NormalizeLimit(input.Limit)}
	if input.MarketDate != nil {
		d := DateOnly(*input.MarketDate)
		filter.MarketDate = &d
	}
	recs, err := db.InTenant(ctx, s.dbClient, vendorID, func(ctx context.Context) ([]models.Recommendation, error) {
		return s.repo.List(ctx, vendorID, filter)
	})
	if err != nil {
		return nil, err
	}
	out := make([]RecommendationDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewRecommendationDTO(r))
	}
	return out, nil
}

// PredictedRevenue is quantity × price, rounded to cents.
func PredictedRevenue(quantity int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// DateOnly truncates to the UTC calendar date.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
