package features

import (
	"testing"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNamesMatchSchemaV1(t *testing.T) {
	require.Equal(t, "v1", SchemaVersion)
	require.Len(t, Names(), 14)
	require.Equal(t, DayOfWeek, Names()[0])
	require.Equal(t, IsSeasonal, Names()[13])

	got := Names()
	got[0] = "mutated"
	require.Equal(t, DayOfWeek, Names()[0])
}

func TestBuildFullVector(t *testing.T) {
	product := uuid.New()
	other := uuid.New()
	venue := uuid.New()
	otherVenue := uuid.New()
	// Saturday
	market := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)

	history := []SalePoint{
		{Date: market.AddDate(0, 0, -7).Add(10 * time.Hour), VenueID: &venue, ProductID: product, Quantity: 10},
		{Date: market.AddDate(0, 0, -7).Add(11 * time.Hour), VenueID: &venue, ProductID: product, Quantity: 4},
		{Date: market.AddDate(0, 0, -14), VenueID: &venue, ProductID: product, Quantity: 16},
		{Date: market.AddDate(0, 0, -60), VenueID: &otherVenue, ProductID: product, Quantity: 30},
		{Date: market.AddDate(0, 0, -21), VenueID: &venue, ProductID: other, Quantity: 3},
		// outside the windows
		{Date: market.AddDate(0, 0, -120), VenueID: &venue, ProductID: product, Quantity: 99},
		{Date: market, VenueID: &venue, ProductID: product, Quantity: 99},
	}

	vec := Build(Input{
		ProductID:  product,
		VenueID:    venue,
		MarketDate: market,
		Price:      decimal.RequireFromString("5.99"),
		IsSeasonal: true,
		History:    history,
		Weather:    &types.WeatherSnapshot{TempF: 71.5, PrecipitationProbability: 0.6, Conditions: "clouds"},
		Events:     &types.EventSnapshot{IsSpecialEvent: true, ExpectedAttendance: 1200},
	})

	want := []float64{
		5,    // saturday
		6,    // june
		1,    // weekend
		15,   // (14 + 16) / 2 sale days
		20,   // (14 + 16 + 30) / 3
		71.5, // temp
		0.6,  // pop
		1,    // pop >= 0.5
		1,    // special event
		1200, // attendance
		3,    // days -7, -14, -21 at this venue
		7,    // last product sale a week ago
		5.99, // price
		1,    // seasonal
	}
	require.Equal(t, SchemaVersion, vec.SchemaVersion)
	require.False(t, vec.LowConfidence)
	if diff := cmp.Diff(want, vec.Values); diff != "" {
		t.Fatalf("vector mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 15.0, vec.Get(HistoricalAvgQty30d))
	require.Equal(t, 0.0, vec.Get("unknown"))
}

func TestBuildZeroFillsMissingData(t *testing.T) {
	market := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC) // Monday

	vec := Build(Input{
		ProductID:  uuid.New(),
		VenueID:    uuid.New(),
		MarketDate: market,
		Price:      decimal.NewFromInt(3),
	})

	require.True(t, vec.LowConfidence)
	require.Len(t, vec.Values, len(Names()))
	require.Equal(t, 0.0, vec.Get(DayOfWeek))
	require.Equal(t, 0.0, vec.Get(IsWeekend))
	for _, name := range []string{HistoricalAvgQty30d, HistoricalAvgQty90d, TempF, IsRain, IsSpecialEvent, VenueVisitCount, DaysSinceLastSale} {
		require.Zero(t, vec.Get(name), name)
	}
	require.Equal(t, 3.0, vec.Get(Price))
}

func TestBuildFlagsNewVenue(t *testing.T) {
	product := uuid.New()
	venue := uuid.New()
	market := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)

	vec := Build(Input{
		ProductID:  product,
		VenueID:    uuid.New(),
		MarketDate: market,
		History: []SalePoint{
			{Date: market.AddDate(0, 0, -3), VenueID: &venue, ProductID: product, Quantity: 8},
		},
	})

	require.True(t, vec.LowConfidence)
	require.Equal(t, 8.0, vec.Get(HistoricalAvgQty30d))
	require.Equal(t, 0.0, vec.Get(VenueVisitCount))
}

func TestBuildIsStableAcrossCalls(t *testing.T) {
	in := Input{
		ProductID:  uuid.New(),
		VenueID:    uuid.New(),
		MarketDate: time.Date(2026, 7, 4, 15, 30, 0, 0, time.FixedZone("PDT", -7*3600)),
		Price:      decimal.RequireFromString("2.50"),
	}
	require.Equal(t, Build(in), Build(in))
	require.Equal(t, 7.0, Build(in).Get(Month))
}
