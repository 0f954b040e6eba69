// Package safety scores every route alternative between two points against the live hazard state.
package safety

import (
	"errors"
	"time"

	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/scoring"
	"github.com/saferoute/saferoute/internal/weather"
)

// ErrInvalidRequest indicates a malformed scoring request.
var ErrInvalidRequest = errors.New("invalid route scoring request")

// Request asks for scored routes between two points.
type Request struct {
	Origin      routing.Coordinate
	Destination routing.Coordinate
	Vehicle     scoring.Vehicle
	TimeOfDay   scoring.TimeOfDay // empty derives day or night from the clock
	Toggles     scoring.Toggles

	// CrowdDensity in [0,1] overrides the crowd default under the density convention.
	CrowdDensity *float64
}

// Candidate is one scored route.
type Candidate struct {
	ID            string            `json:"id"`
	Polyline      [][2]float64      `json:"polyline"` // [lng, lat] pairs
	DistanceKm    float64           `json:"distance_km"`
	TravelTimeMin float64           `json:"travel_time_min"`
	Summary       string            `json:"summary,omitempty"`
	Weather       weather.Sample    `json:"weather"`
	Breakdown     scoring.Breakdown `json:"score_breakdown"`
}

// Response is the scored set of candidates, in provider order.
type Response struct {
	Routes      []Candidate       `json:"routes"`
	Hazard      hazard.State      `json:"hazard"`
	Mode        scoring.Mode      `json:"mode"`
	Vehicle     scoring.Vehicle   `json:"vehicle"`
	TimeOfDay   scoring.TimeOfDay `json:"time_of_day"`
	Provider    string            `json:"provider"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// ProfileFor maps a vehicle to its routing profile.
func ProfileFor(v scoring.Vehicle) routing.Profile {
	switch v {
	case scoring.VehicleTruck:
		return routing.ProfileTruck
	case scoring.VehicleBike:
		return routing.ProfileBike
	case scoring.VehiclePedestrian:
		return routing.ProfilePedestrian
	default:
		return routing.ProfileCar
	}
}

// TimeOfDayAt returns night before 06:00 and from 20:00, day otherwise.
func TimeOfDayAt(t time.Time) scoring.TimeOfDay {
	if h := t.Hour(); h < 6 || h >= 20 {
		return scoring.Night
	}
	return scoring.Day
}
