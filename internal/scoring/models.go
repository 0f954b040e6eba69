// Package scoring turns route attributes and hazard conditions into a bounded safety score.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/weather"
)

// Scoring errors.
var (
	ErrUnknownMode       = errors.New("unknown scoring mode")
	ErrUnknownConvention = errors.New("unknown crowd convention")
	ErrUnknownVehicle    = errors.New("unknown vehicle type")
	ErrUnknownTimeOfDay  = errors.New("unknown time of day")
)

// Mode selects how the weather and darkness penalties are approximated.
type Mode string

const (
	// ModeToggle uses distance-graded constants driven by on/off toggles.
	ModeToggle Mode = "toggle"
	// ModeProfile grades weather by condition and intensity and darkness by vehicle.
	ModeProfile Mode = "profile"
)

// ParseMode parses a scoring mode. Empty selects ModeToggle.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeToggle:
		return ModeToggle, nil
	case ModeProfile:
		return ModeProfile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// CrowdConvention selects the sign convention of the crowd component.
type CrowdConvention string

const (
	// CrowdFlatPenalty subtracts 20 (long routes) or 10 when the crowd modifier is active.
	CrowdFlatPenalty CrowdConvention = "flat_penalty"
	// CrowdDensityBonus applies a signed penalty: dense crowds are safer, sparse ones are not.
	CrowdDensityBonus CrowdConvention = "density_bonus"
)

// ParseCrowdConvention parses a crowd convention. Empty selects CrowdFlatPenalty.
func ParseCrowdConvention(s string) (CrowdConvention, error) {
	switch CrowdConvention(strings.ToLower(strings.TrimSpace(s))) {
	case "", CrowdFlatPenalty:
		return CrowdFlatPenalty, nil
	case CrowdDensityBonus:
		return CrowdDensityBonus, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConvention, s)
	}
}

// Vehicle is the travel profile of the route.
type Vehicle string

const (
	VehicleCar        Vehicle = "car"
	VehicleTruck      Vehicle = "truck"
	VehicleBike       Vehicle = "bike"
	VehiclePedestrian Vehicle = "pedestrian"
)

// ParseVehicle parses a vehicle type. Empty selects VehicleCar.
func ParseVehicle(s string) (Vehicle, error) {
	switch v := Vehicle(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VehicleCar, nil
	case VehicleCar, VehicleTruck, VehicleBike, VehiclePedestrian:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVehicle, s)
	}
}

// TimeOfDay is day or night.
type TimeOfDay string

const (
	Day   TimeOfDay = "day"
	Night TimeOfDay = "night"
)

// ParseTimeOfDay parses a time of day. Empty is returned as-is so callers can derive it.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch t := TimeOfDay(strings.ToLower(strings.TrimSpace(s))); t {
	case "", Day, Night:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeOfDay, s)
	}
}

// Toggles are per-request hazard switches. They add to, never remove, the global state.
type Toggles struct {
	Storm        bool `json:"storm"`
	Crowd        bool `json:"crowd"`
	Construction bool `json:"construction"`
}

// Input is everything a score depends on.
type Input struct {
	DistanceKm     float64
	PolylinePoints int
	State          hazard.State
	Toggles        Toggles
	Vehicle        Vehicle
	TimeOfDay      TimeOfDay

	// Weather is the real-time sample for the route; nil or degraded means unavailable.
	Weather *weather.Sample

	// CrowdDensity in [0,1], used by CrowdDensityBonus. Nil uses the modifier default.
	CrowdDensity *float64
}

// Breakdown is the itemized score for one route candidate.
type Breakdown struct {
	WeatherPenalty      float64 `json:"weather_penalty"`
	CrowdPenalty        float64 `json:"crowd_penalty"`
	DarknessPenalty     float64 `json:"darkness_penalty"`
	ConstructionPenalty float64 `json:"construction_penalty"`
	DistancePenalty     float64 `json:"distance_penalty"`
	FinalScore          float64 `json:"final_score"`
}

// Rounded returns the breakdown with every field rounded to one decimal place.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		WeatherPenalty:      round1(b.WeatherPenalty),
		CrowdPenalty:        round1(b.CrowdPenalty),
		DarknessPenalty:     round1(b.DarknessPenalty),
		ConstructionPenalty: round1(b.ConstructionPenalty),
		DistancePenalty:     round1(b.DistancePenalty),
		FinalScore:          round1(b.FinalScore),
	}
}

// Total is the sum of all penalties.
func (b Breakdown) Total() float64 {
	return b.WeatherPenalty + b.CrowdPenalty + b.DarknessPenalty + b.ConstructionPenalty + b.DistancePenalty
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
