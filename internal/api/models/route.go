package models

import (
	"github.com/saferoute/saferoute/internal/scoring"
	"github.com/saferoute/saferoute/internal/weather"
)

// RouteScoreRequest is the request body for scoring routes.
type RouteScoreRequest struct {
	Origin      LngLat `json:"origin" validate:"required,len=2"`
	Destination LngLat `json:"destination" validate:"required,len=2"`

	// VehicleType defaults to car.
	VehicleType string `json:"vehicleType,omitempty"`

	// TimeOfDay defaults to the server clock.
	TimeOfDay string `json:"timeOfDay,omitempty"`

	Toggles *ScoreToggles `json:"toggles,omitempty"`

	// CrowdDensity in [0,1] applies under the density_bonus crowd convention.
	CrowdDensity *float64 `json:"crowdDensity,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ScoreToggles forces hazard modifiers on for a single request.
type ScoreToggles struct {
	Storm        bool `json:"storm"`
	Crowd        bool `json:"crowd"`
	Construction bool `json:"construction"`
}

// RouteScoreResponse is the response for route scoring.
type RouteScoreResponse struct {
	GeneratedAt Timestamp     `json:"generatedAt"`
	Mode        string        `json:"mode"`
	VehicleType string        `json:"vehicleType"`
	TimeOfDay   string        `json:"timeOfDay"`
	Provider    string        `json:"provider"`
	Hazard      HazardState   `json:"hazard"`
	Routes      []ScoredRoute `json:"routes"`
}

// ScoredRoute is one route alternative with its safety score.
type ScoredRoute struct {
	ID            string            `json:"routeId"`
	Polyline      [][2]float64      `json:"polyline"`
	DistanceKm    float64           `json:"distanceKm"`
	TravelTimeMin float64           `json:"travelTimeMin"`
	Summary       string            `json:"summary,omitempty"`
	SafetyScore   float64           `json:"safetyScore"`
	Breakdown     scoring.Breakdown `json:"breakdown"`
	Weather       weather.Sample    `json:"weather"`
}
