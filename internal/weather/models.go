// Package weather provides real-time weather samples and their safety penalties.
package weather

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Penalty bounds for a real weather sample.
const (
	MaxRainPenalty       = 20.0
	MaxVisibilityPenalty = 25.0
	MaxWindPenalty       = 15.0
	MaxSeverePenalty     = 30.0
	MaxTotalPenalty      = 90.0

	// MaxHourlyEntries is the number of future hours kept on a sample.
	MaxHourlyEntries = 12

	// DefaultVisibilityMeters is assumed when the provider reports no visibility.
	DefaultVisibilityMeters = 10000.0
)

// Fetcher is the upstream weather provider consumed by the cache.
type Fetcher interface {
	// FetchWeather returns current conditions and the hourly forecast for a point.
	FetchWeather(ctx context.Context, lat, lon float64) (*Reading, error)

	// Name returns the provider name for logging.
	Name() string
}

// Reading is the raw upstream payload for a point.
type Reading struct {
	Temperature      float64 // Celsius
	PrecipitationMm  float64
	WindKmh          float64
	WeatherCode      int     // WMO weather interpretation code
	VisibilityMeters float64 // 0 when not reported
	Hourly           []HourlyReading
}

// HourlyReading is one hour of the upstream forecast.
type HourlyReading struct {
	Time        time.Time
	Temperature float64
	WeatherCode int
}

// Sample is an immutable, scored weather observation for a point.
// The cache hands out copies, so callers never share Hourly with the stored entry.
type Sample struct {
	Temperature     float64        `json:"temperature"`
	PrecipitationMm float64        `json:"precipitation_mm"`
	WindKmh         float64        `json:"wind_kmh"`
	VisibilityKm    float64        `json:"visibility_km"`
	ConditionCode   int            `json:"condition_code"`
	Condition       string         `json:"condition"`
	Penalty         float64        `json:"penalty"`
	Hourly          []HourlySample `json:"hourly_forecast,omitempty"`
	FetchedAt       time.Time      `json:"fetched_at"`

	// Degraded marks the fallback sample returned when the provider is unreachable.
	Degraded bool `json:"degraded"`
}

// HourlySample is one future hour of a sample's forecast.
type HourlySample struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	Condition     string    `json:"condition"`
	ConditionCode int       `json:"condition_code"`
}

// NewSample scores a reading. Only hours at or after now are kept, at most MaxHourlyEntries.
func NewSample(r Reading, now time.Time) Sample {
	visibility := r.VisibilityMeters
	if visibility <= 0 {
		visibility = DefaultVisibilityMeters
	}

	s := Sample{
		Temperature:     r.Temperature,
		PrecipitationMm: r.PrecipitationMm,
		WindKmh:         r.WindKmh,
		VisibilityKm:    visibility / 1000,
		ConditionCode:   r.WeatherCode,
		Condition:       ConditionName(r.WeatherCode),
		Penalty:         TotalPenalty(r.PrecipitationMm, visibility, r.WindKmh, r.WeatherCode),
		FetchedAt:       now,
	}

	for _, h := range r.Hourly {
		if len(s.Hourly) >= MaxHourlyEntries {
			break
		}
		if h.Time.Before(now) {
			continue
		}
		s.Hourly = append(s.Hourly, HourlySample{
			Time:          h.Time,
			Temperature:   h.Temperature,
			Condition:     ConditionName(h.WeatherCode),
			ConditionCode: h.WeatherCode,
		})
	}

	return s
}

// FallbackSample is used when the provider cannot be reached: clear skies, no penalty.
func FallbackSample(now time.Time) Sample {
	return Sample{
		Temperature:   20,
		VisibilityKm:  DefaultVisibilityMeters / 1000,
		ConditionCode: 0,
		Condition:     "clear",
		FetchedAt:     now,
		Degraded:      true,
	}
}

// ConditionName maps a WMO weather code to a condition name.
// Shower codes (80-86) are reported as unknown.
func ConditionName(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code >= 1 && code <= 3:
		return "partly-cloudy"
	case code >= 45 && code <= 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 95 && code <= 99:
		return "storm"
	default:
		return "unknown"
	}
}

// clone copies the sample including its hourly forecast.
func (s Sample) clone() Sample {
	s.Hourly = slices.Clone(s.Hourly)
	return s
}
