package events

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"gopkg.in/yaml.v3"
)

const earthRadiusMiles = 3958.8

// CalendarEntry is one known local event. Date pins a single day; Recurring
// ("MM-DD") repeats yearly. Entries without coordinates apply everywhere.
type CalendarEntry struct {
	Name               string   `yaml:"name"`
	Date               string   `yaml:"date"`
	Recurring          string   `yaml:"recurring"`
	Latitude           *float64 `yaml:"latitude"`
	Longitude          *float64 `yaml:"longitude"`
	RadiusMiles        float64  `yaml:"radius_miles"`
	ExpectedAttendance int      `yaml:"expected_attendance"`
}

// Calendar is the vendor-maintained list of events the API does not know about.
type Calendar struct {
	Events []CalendarEntry `yaml:"events"`
}

// LoadCalendar reads a YAML calendar. An empty path yields an empty calendar.
func LoadCalendar(path string) (*Calendar, error) {
	if strings.TrimSpace(path) == "" {
		return &Calendar{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event calendar: %w", err)
	}
	return ParseCalendar(raw)
}

// ParseCalendar decodes and validates calendar YAML.
func ParseCalendar(raw []byte) (*Calendar, error) {
	var cal Calendar
	if err := yaml.Unmarshal(raw, &cal); err != nil {
		return nil, fmt.Errorf("parse event calendar: %w", err)
	}
	for i, entry := range cal.Events {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, fmt.Errorf("event calendar entry %d: name is required", i)
		}
		switch {
		case entry.Date != "":
			if _, err := time.Parse(time.DateOnly, entry.Date); err != nil {
				return nil, fmt.Errorf("event calendar entry %q: invalid date: %w", entry.Name, err)
			}
		case entry.Recurring != "":
			if _, err := time.Parse("01-02", entry.Recurring); err != nil {
				return nil, fmt.Errorf("event calendar entry %q: invalid recurring day: %w", entry.Name, err)
			}
		default:
			return nil, fmt.Errorf("event calendar entry %q: date or recurring is required", entry.Name)
		}
		if (entry.Latitude == nil) != (entry.Longitude == nil) {
			return nil, fmt.Errorf("event calendar entry %q: latitude and longitude go together", entry.Name)
		}
	}
	return &cal, nil
}

// Lookup returns the calendar events active on date near (lat, lon).
func (c *Calendar) Lookup(date time.Time, lat, lon float64) types.EventSnapshot {
	var snap types.EventSnapshot
	if c == nil {
		return snap
	}
	day := date.Format(time.DateOnly)
	monthDay := date.Format("01-02")
	for _, entry := range c.Events {
		if entry.Date != day && entry.Recurring != monthDay {
			continue
		}
		if entry.Latitude != nil && entry.RadiusMiles > 0 &&
			haversineMiles(lat, lon, *entry.Latitude, *entry.Longitude) > entry.RadiusMiles {
			continue
		}
		snap = snap.Merge(types.EventSnapshot{
			IsSpecialEvent:     true,
			ExpectedAttendance: entry.ExpectedAttendance,
			Names:              []string{entry.Name},
		})
	}
	return snap
}

func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
