// Package broadcast fans hazard changes out to connected observers.
package broadcast

import "time"

// MessageType identifies the payload carried by a Message.
type MessageType string

// Message types pushed to observers.
const (
	TypeSnapshot       MessageType = "hazard_snapshot"
	TypeWeatherUpdate  MessageType = "weather_update"
	TypeCrowdUpdate    MessageType = "crowd_update"
	TypeEventApplied   MessageType = "event_applied"
	TypeVehicleUpdates MessageType = "vehicle_updates"
)

// Message is one notification. Payload must be safe to share between observers.
type Message struct {
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// WeatherUpdate is the weather delta payload.
type WeatherUpdate struct {
	Condition string    `json:"condition"`
	Intensity float64   `json:"intensity"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// CrowdUpdate is the crowd delta payload.
type CrowdUpdate struct {
	Global  bool    `json:"global"`
	Penalty float64 `json:"penalty"`
}

// EventApplied reports that a hazard event was applied.
// Active and Penalty are set only for the construction delta; State only on the summary.
type EventApplied struct {
	Event     string    `json:"event"`
	Active    *bool     `json:"active,omitempty"`
	Penalty   *float64  `json:"penalty,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	State     any       `json:"state,omitempty"`
}

// VehiclePosition is one simulated vehicle position.
type VehiclePosition struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"`
	SpeedKm float64 `json:"speed_kmh"`
}
