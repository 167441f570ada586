package recommendations

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/dbtest"
	"github.com/angelmondragon/marketprep-backend/internal/features"
	"github.com/angelmondragon/marketprep-backend/internal/predictor"
	product "github.com/angelmondragon/marketprep-backend/internal/products"
	"github.com/angelmondragon/marketprep-backend/internal/sales"
	"github.com/angelmondragon/marketprep-backend/internal/venues"
	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/db"
	"github.com/angelmondragon/marketprep-backend/pkg/db/models"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/events"
	"github.com/angelmondragon/marketprep-backend/pkg/metrics"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/angelmondragon/marketprep-backend/pkg/weather"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 10, 9, 30, 0, 0, time.UTC)

type stubWeather struct {
	res   adapter.Result[types.WeatherSnapshot]
	calls int
}

func (s *stubWeather) Fetch(context.Context, weather.Params) adapter.Result[types.WeatherSnapshot] {
	s.calls++
	return s.res
}

type stubEvents struct {
	res adapter.Result[types.EventSnapshot]
}

func (s *stubEvents) Fetch(context.Context, events.Params) adapter.Result[types.EventSnapshot] {
	return s.res
}

type staticModel struct{ forest *predictor.Forest }

func (m staticModel) Current() *predictor.Forest { return m.forest }

type fixture struct {
	client  *db.Client
	conn    *gorm.DB
	vendor  uuid.UUID
	venue   models.Venue
	jam     models.Product
	weather *stubWeather
	events  *stubEvents
	reg     *prometheus.Registry
	models  predictor.ModelSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &fixture{
		client:  client,
		conn:    client.DB(),
		vendor:  uuid.New(),
		weather: &stubWeather{res: adapter.Result[types.WeatherSnapshot]{Degraded: true}},
		events:  &stubEvents{res: adapter.Result[types.EventSnapshot]{Degraded: true}},
		reg:     prometheus.NewRegistry(),
	}
	f.venue = mustCreateVenue(t, f.conn, f.vendor)
	f.jam = mustCreateProduct(t, f.conn, f.vendor, "Peach Jam", "5.99")
	return f
}

func (f *fixture) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(f.conn),
		f.client,
		product.NewRepository(f.conn),
		venues.NewRepository(f.conn),
		sales.NewRepository(f.conn),
		f.weather,
		f.events,
		predictor.NewEngine(f.models, nil),
		WithClock(func() time.Time { return testNow }),
		WithMetrics(metrics.NewRecommendationMetrics(f.reg)),
	)
	require.NoError(t, err)
	return svc
}

func mustCreateVenue(t *testing.T, conn *gorm.DB, vendorID uuid.UUID) models.Venue {
	t.Helper()
	v := models.Venue{VendorID: vendorID, Name: "Ferry Plaza", Latitude: 37.79, Longitude: -122.39}
	require.NoError(t, conn.Create(&v).Error)
	return v
}

func mustCreateProduct(t *testing.T, conn *gorm.DB, vendorID uuid.UUID, name, price string) models.Product {
	t.Helper()
	p := models.Product{VendorID: vendorID, Name: name, Price: decimal.RequireFromString(price), IsActive: true}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func mustCreateSale(t *testing.T, conn *gorm.DB, vendorID, venueID, productID uuid.UUID, at time.Time, qty int) {
	t.Helper()
	require.NoError(t, sales.NewRepository(conn).Create(context.Background(), &models.Sale{
		VendorID:    vendorID,
		VenueID:     &venueID,
		SaleDate:    at,
		TotalAmount: decimal.NewFromInt(int64(qty)),
		Source:      enums.SaleSourceManual,
		LineItems:   []models.SaleLineItem{{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(1)}},
	}))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestGenerateHeuristicWhenDegraded(t *testing.T) {
	f := newFixture(t)
	market := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)
	mustCreateSale(t, f.conn, f.vendor, f.venue.ID, f.jam.ID, time.Date(2026, 6, 6, 15, 0, 0, 0, time.UTC), 10)
	mustCreateSale(t, f.conn, f.vendor, f.venue.ID, f.jam.ID, time.Date(2026, 5, 30, 15, 0, 0, 0, time.UTC), 20)

	recs, err := f.service(t).Generate(context.Background(), f.vendor, GenerateInput{
		MarketDate: market,
		VenueID:    f.venue.ID,
		ProductIDs: []uuid.UUID{f.jam.ID},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	require.Equal(t, 15, rec.RecommendedQuantity)
	require.Equal(t, 0.5, rec.ConfidenceScore)
	require.Equal(t, enums.ConfidenceLevelMedium, rec.ConfidenceLevel)
	require.Equal(t, "89.85", rec.PredictedRevenue.StringFixed(2))
	require.True(t, rec.Degraded)
	require.Nil(t, rec.Weather)
	require.Equal(t, predictor.SourceHeuristic, rec.Source)
	require.Equal(t, "2026-06-13", rec.MarketDate)
	require.Equal(t, "v1", rec.FeatureSchemaVersion)

	var stored models.Recommendation
	require.NoError(t, f.conn.First(&stored, "id = ?", rec.ID).Error)
	require.Equal(t, f.vendor, stored.VendorID)
	require.Len(t, stored.Features.Data(), 14)

	require.Equal(t, 1.0, counterValue(t, f.reg, "marketprep_recommendations_generated_total", map[string]string{"source": "heuristic"}))
	require.Equal(t, 1.0, counterValue(t, f.reg, "marketprep_recommendation_requests_degraded_total", nil))
}

func TestGenerateUsesModelAndContext(t *testing.T) {
	f := newFixture(t)
	f.models = staticModel{forest: constantForest(12)}
	f.weather.res = adapter.Result[types.WeatherSnapshot]{Value: &types.WeatherSnapshot{TempF: 70, Conditions: "clear"}}
	f.events.res = adapter.Result[types.EventSnapshot]{Value: &types.EventSnapshot{IsSpecialEvent: true, ExpectedAttendance: 900}}
	mustCreateSale(t, f.conn, f.vendor, f.venue.ID, f.jam.ID, time.Date(2026, 6, 6, 15, 0, 0, 0, time.UTC), 10)

	recs, err := f.service(t).Generate(context.Background(), f.vendor, GenerateInput{
		MarketDate: time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC),
		VenueID:    f.venue.ID,
		ProductIDs: []uuid.UUID{f.jam.ID},
	})
	require.NoError(t, err)
	rec := recs[0]
	require.Equal(t, 12, rec.RecommendedQuantity)
	require.Equal(t, 1.0, rec.ConfidenceScore)
	require.Equal(t, enums.ConfidenceLevelHigh, rec.ConfidenceLevel)
	require.Equal(t, predictor.SourceModel, rec.Source)
	require.Equal(t, "rf-const", rec.ModelVersion)
	require.False(t, rec.Degraded)
	require.True(t, rec.IsSpecialEvent)
	require.Equal(t, 70.0, rec.Weather.TempF)
	require.Equal(t, "71.88", rec.PredictedRevenue.StringFixed(2))
	require.Equal(t, 1, f.weather.calls)
}

func constantForest(value float64) *predictor.Forest {
	tree := predictor.Tree{
		ChildrenLeft:  []int{-1},
		ChildrenRight: []int{-1},
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		Value:         []float64{value},
	}
	return &predictor.Forest{
		ModelVersion:  "rf-const",
		SchemaVersion: "v1",
		Trees:         []predictor.Tree{tree, tree},
		FeatureNames:  features.Names(),
	}
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()
	market := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)

	cases := map[string]GenerateInput{
		"past date":   {MarketDate: testNow.AddDate(0, 0, -1), VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID}},
		"no products": {MarketDate: market, VenueID: f.venue.ID},
		"duplicates":  {MarketDate: market, VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID, f.jam.ID}},
		"no venue":    {MarketDate: market, ProductIDs: []uuid.UUID{f.jam.ID}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Generate(ctx, f.vendor, in)
			require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}

	// today is allowed
	_, err := svc.Generate(ctx, f.vendor, GenerateInput{MarketDate: testNow, VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID}})
	require.NoError(t, err)
}

func TestGenerateRejectsForeignAndInactive(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()
	market := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)

	otherVendor := uuid.New()
	foreignVenue := mustCreateVenue(t, f.conn, otherVendor)
	foreignProduct := mustCreateProduct(t, f.conn, otherVendor, "Their Jam", "4.00")

	_, err := svc.Generate(ctx, f.vendor, GenerateInput{MarketDate: market, VenueID: foreignVenue.ID, ProductIDs: []uuid.UUID{f.jam.ID}})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = svc.Generate(ctx, f.vendor, GenerateInput{MarketDate: market, VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID, foreignProduct.ID}})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.jam.ID).Update("is_active", false).Error)
	_, err = svc.Generate(ctx, f.vendor, GenerateInput{MarketDate: market, VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID}})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	var count int64
	require.NoError(t, f.conn.Model(&models.Recommendation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestListIsStableAndTenantScoped(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()
	bread := mustCreateProduct(t, f.conn, f.vendor, "Bread", "7.00")
	market := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)

	generated, err := svc.Generate(ctx, f.vendor, GenerateInput{MarketDate: market, VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID, bread.ID}})
	require.NoError(t, err)
	require.Len(t, generated, 2)
	// request order, not name order
	require.Equal(t, f.jam.ID, generated[0].ProductID)
	require.Equal(t, bread.ID, generated[1].ProductID)
	_, err = svc.Generate(ctx, f.vendor, GenerateInput{MarketDate: market.AddDate(0, 0, 7), VenueID: f.venue.ID, ProductIDs: []uuid.UUID{f.jam.ID}})
	require.NoError(t, err)

	first, err := svc.List(ctx, f.vendor, ListInput{MarketDate: &market})
	require.NoError(t, err)
	second, err := svc.List(ctx, f.vendor, ListInput{MarketDate: &market})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, first, second)

	all, err := svc.List(ctx, f.vendor, ListInput{VenueID: &f.venue.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)

	limited, err := svc.List(ctx, f.vendor, ListInput{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	foreign, err := svc.List(ctx, uuid.New(), ListInput{})
	require.NoError(t, err)
	require.Empty(t, foreign)
}

func TestPredictedRevenue(t *testing.T) {
	require.Equal(t, "89.85", PredictedRevenue(15, decimal.RequireFromString("5.99")).StringFixed(2))
	require.True(t, PredictedRevenue(0, decimal.RequireFromString("5.99")).IsZero())
}
