package types

import "time"

// WeatherSnapshot is the normalized forecast slot used for one market date.
type WeatherSnapshot struct {
	TempF                    float64   `json:"temp_f"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	Conditions               string    `json:"conditions"`
	SourceTime               time.Time `json:"source_time"`
}

// IsRain reports whether the slot should be treated as a rain day.
func (w WeatherSnapshot) IsRain() bool {
	switch w.Conditions {
	case "rain", "drizzle", "thunderstorm":
		return true
	}
	return w.PrecipitationProbability >= 0.5
}
