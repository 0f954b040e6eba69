// Package hazard holds the process-wide hazard state that every route score reads.
package hazard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Hazard errors.
var (
	// ErrInvalidTransition indicates a transition payload failed validation.
	ErrInvalidTransition = errors.New("invalid hazard transition")
	// ErrUnknownCondition indicates a weather condition outside the supported set.
	ErrUnknownCondition = errors.New("unknown weather condition")
)

// Penalty bounds for the global modifiers.
const (
	MaxCrowdPenalty          = 30.0
	ConstructionPenaltyValue = 15.0
)

// Condition is the mutually exclusive weather condition of the hazard state.
type Condition string

const (
	ConditionClear Condition = "clear"
	ConditionRain  Condition = "rain"
	ConditionStorm Condition = "storm"
	ConditionFog   Condition = "fog"
)

// Valid reports whether c is one of the supported conditions.
func (c Condition) Valid() bool {
	switch c {
	case ConditionClear, ConditionRain, ConditionStorm, ConditionFog:
		return true
	default:
		return false
	}
}

// ParseCondition parses a condition name, case-insensitively.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCondition, s)
	}
	return c, nil
}

// State is a snapshot of the hazard conditions affecting all routes.
// It is always handed out by value.
type State struct {
	WeatherCondition   Condition `json:"weather_condition"`
	WeatherIntensity   float64   `json:"weather_intensity"`
	WeatherWindowStart time.Time `json:"weather_window_start"`
	WeatherWindowEnd   time.Time `json:"weather_window_end"`

	// GlobalCrowdPenalty is in [0, MaxCrowdPenalty]. It only decays through an explicit clear.
	GlobalCrowdPenalty float64 `json:"global_crowd_penalty"`

	// GlobalConstructionPenalty is 0 or ConstructionPenaltyValue.
	GlobalConstructionPenalty float64 `json:"global_construction_penalty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// StormActive reports whether the storm toggle is in effect.
func (s State) StormActive() bool {
	return s.WeatherCondition == ConditionStorm
}

// CrowdActive reports whether a crowd spike is in effect.
func (s State) CrowdActive() bool {
	return s.GlobalCrowdPenalty > 0
}

// ConstructionActive reports whether the construction modifier is in effect.
func (s State) ConstructionActive() bool {
	return s.GlobalConstructionPenalty > 0
}

// DefaultState returns the state a fresh process starts with.
func DefaultState(now time.Time) State {
	return State{
		WeatherCondition:   ConditionClear,
		WeatherWindowStart: now,
		WeatherWindowEnd:   now,
		UpdatedAt:          now,
	}
}
