// Package features turns sales history and market-day context into the fixed
// numeric vector the demand model is trained on.
package features

import (
	"math"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SchemaVersion tags the order and scaling of Names. Any change to either
// needs a new version and a retrained model.
const SchemaVersion = "v1"

const (
	shortWindowDays = 30
	longWindowDays  = 90
	day             = 24 * time.Hour
)

const (
	DayOfWeek                = "day_of_week"
	Month                    = "month"
	IsWeekend                = "is_weekend"
	HistoricalAvgQty30d      = "historical_avg_qty_30d"
	HistoricalAvgQty90d      = "historical_avg_qty_90d"
	TempF                    = "temp_f"
	PrecipitationProbability = "precipitation_probability"
	IsRain                   = "is_rain"
	IsSpecialEvent           = "is_special_event"
	ExpectedAttendance       = "expected_attendance"
	VenueVisitCount          = "venue_visit_count"
	DaysSinceLastSale        = "days_since_last_sale"
	Price                    = "price"
	IsSeasonal               = "is_seasonal"
)

var names = []string{
	DayOfWeek,
	Month,
	IsWeekend,
	HistoricalAvgQty30d,
	HistoricalAvgQty90d,
	TempF,
	PrecipitationProbability,
	IsRain,
	IsSpecialEvent,
	ExpectedAttendance,
	VenueVisitCount,
	DaysSinceLastSale,
	Price,
	IsSeasonal,
}

var index = func() map[string]int {
	out := make(map[string]int, len(names))
	for i, n := range names {
		out[n] = i
	}
	return out
}()

// Names returns the feature names in vector order.
func Names() []string {
	return append([]string(nil), names...)
}

// HistoryWindow is how far back Build looks; callers load this much history.
func HistoryWindow() time.Duration {
	return longWindowDays * day
}

// SalePoint is one product line from a past sale.
type SalePoint struct {
	Date      time.Time
	VenueID   *uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// Input is everything Build needs for one (product, venue, date).
type Input struct {
	ProductID  uuid.UUID
	VenueID    uuid.UUID
	MarketDate time.Time
	Price      decimal.Decimal
	IsSeasonal bool
	// History is the vendor's sales; rows outside the 90 day window are ignored.
	History []SalePoint
	Weather *types.WeatherSnapshot
	Events  *types.EventSnapshot
}

// Vector is the model input for one product.
type Vector struct {
	SchemaVersion string
	Values        []float64
	// LowConfidence is set when the product or venue has no usable history.
	LowConfidence bool
}

// Get returns the named feature.
func (v Vector) Get(name string) float64 {
	i, ok := index[name]
	if !ok || i >= len(v.Values) {
		return 0
	}
	return v.Values[i]
}

// Build assembles the vector. Missing history, weather or events zero-fill.
func Build(in Input) Vector {
	target := dateOnly(in.MarketDate)
	values := make([]float64, len(names))
	set := func(name string, v float64) { values[index[name]] = v }

	weekday := (int(target.Weekday()) + 6) % 7
	set(DayOfWeek, float64(weekday))
	set(Month, float64(target.Month()))
	set(IsWeekend, boolValue(weekday >= 5))

	h := summarize(in, target)
	set(HistoricalAvgQty30d, h.avg30)
	set(HistoricalAvgQty90d, h.avg90)
	set(VenueVisitCount, float64(h.venueVisits))
	set(DaysSinceLastSale, float64(h.daysSinceLast))

	if w := in.Weather; w != nil {
		set(TempF, w.TempF)
		set(PrecipitationProbability, w.PrecipitationProbability)
		set(IsRain, boolValue(w.IsRain()))
	}
	if e := in.Events; e != nil {
		set(IsSpecialEvent, boolValue(e.IsSpecialEvent))
		set(ExpectedAttendance, float64(e.ExpectedAttendance))
	}

	price, _ := in.Price.Float64()
	set(Price, price)
	set(IsSeasonal, boolValue(in.IsSeasonal))

	return Vector{
		SchemaVersion: SchemaVersion,
		Values:        values,
		LowConfidence: h.productDays90 == 0 || h.venueVisits == 0,
	}
}

type historySummary struct {
	avg30         float64
	avg90         float64
	productDays90 int
	venueVisits   int
	daysSinceLast int
}

func summarize(in Input, target time.Time) historySummary {
	shortStart := target.Add(-shortWindowDays * day)
	longStart := target.Add(-longWindowDays * day)

	qty30 := map[time.Time]int{}
	qty90 := map[time.Time]int{}
	venueDays := map[time.Time]struct{}{}
	var last time.Time

	for _, s := range in.History {
		d := dateOnly(s.Date)
		if d.Before(longStart) || !d.Before(target) {
			continue
		}
		if s.VenueID != nil && *s.VenueID == in.VenueID {
			venueDays[d] = struct{}{}
		}
		if s.ProductID != in.ProductID || s.Quantity <= 0 {
			continue
		}
		qty90[d] += s.Quantity
		if !d.Before(shortStart) {
			qty30[d] += s.Quantity
		}
		if d.After(last) {
			last = d
		}
	}

	out := historySummary{
		avg30:         average(qty30),
		avg90:         average(qty90),
		productDays90: len(qty90),
		venueVisits:   len(venueDays),
	}
	if !last.IsZero() {
		out.daysSinceLast = int(target.Sub(last) / day)
	}
	return out
}

func average(perDay map[time.Time]int) float64 {
	if len(perDay) == 0 {
		return 0
	}
	total := 0
	for _, q := range perDay {
		total += q
	}
	return math.Round(float64(total)/float64(len(perDay))*100) / 100
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
