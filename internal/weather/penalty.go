package weather

import "math"

// TotalPenalty sums the four sub-penalties and caps the result at MaxTotalPenalty.
func TotalPenalty(precipitationMm, visibilityMeters, windKmh float64, code int) float64 {
	total := RainPenalty(precipitationMm) +
		VisibilityPenalty(visibilityMeters) +
		WindPenalty(windKmh) +
		SevereWeatherPenalty(code)
	return math.Min(total, MaxTotalPenalty)
}

// RainPenalty grades precipitation in mm (0-20).
func RainPenalty(mm float64) float64 {
	switch {
	case mm <= 0 || math.IsNaN(mm):
		return 0
	case mm < 0.5:
		return 5
	case mm < 2.0:
		return 10
	case mm < 5.0:
		return 15
	default:
		return MaxRainPenalty
	}
}

// VisibilityPenalty grades visibility in meters (0-25).
func VisibilityPenalty(meters float64) float64 {
	km := meters / 1000
	switch {
	case km >= 10 || math.IsNaN(km):
		return 0
	case km >= 5:
		return 5
	case km >= 2:
		return 10
	case km >= 1:
		return 15
	case km >= 0.5:
		return 20
	default:
		return MaxVisibilityPenalty
	}
}

// WindPenalty grades wind speed in km/h (0-15).
func WindPenalty(kmh float64) float64 {
	switch {
	case kmh < 20 || math.IsNaN(kmh):
		return 0
	case kmh < 40:
		return 5
	case kmh < 60:
		return 10
	default:
		return MaxWindPenalty
	}
}

// SevereWeatherPenalty grades thunderstorms, heavy rain, freezing rain and heavy snow (0-30).
func SevereWeatherPenalty(code int) float64 {
	switch {
	case code >= 97 && code <= 99:
		return MaxSeverePenalty
	case code >= 95 && code <= 96:
		return 20
	case code >= 65 && code <= 67:
		// heavy and freezing rain
		return 25
	case code >= 73 && code <= 77:
		return 25
	default:
		return 0
	}
}
