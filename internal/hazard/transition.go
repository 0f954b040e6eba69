package hazard

import (
	"fmt"
	"math"
	"time"
)

// Transition is one of the closed set of named state changes accepted by Store.Apply.
// Implementations validate their payload and replace only their own field subset.
type Transition interface {
	// Name identifies the transition in logs.
	Name() string

	// apply returns the next state or a validation error. It must not have side effects.
	apply(current State, now time.Time, window time.Duration) (State, error)
}

// SetWeather replaces the weather condition, intensity and validity window.
type SetWeather struct {
	Condition Condition
	Intensity float64
}

// Name implements Transition.
func (t SetWeather) Name() string { return "setWeather" }

func (t SetWeather) apply(current State, now time.Time, window time.Duration) (State, error) {
	if !t.Condition.Valid() {
		return current, fmt.Errorf("%w: %w: %q", ErrInvalidTransition, ErrUnknownCondition, t.Condition)
	}
	if math.IsNaN(t.Intensity) || t.Intensity < 0 || t.Intensity > 1 {
		return current, fmt.Errorf("%w: intensity %v out of range [0, 1]", ErrInvalidTransition, t.Intensity)
	}

	next := current
	next.WeatherCondition = t.Condition
	next.WeatherIntensity = t.Intensity
	next.WeatherWindowStart = now
	next.WeatherWindowEnd = now
	if t.Condition != ConditionClear {
		next.WeatherWindowEnd = now.Add(window)
	}
	return next, nil
}

// SetCrowdPenalty replaces the global crowd penalty. Values are clamped into [0, MaxCrowdPenalty].
type SetCrowdPenalty struct {
	Value float64
}

// Name implements Transition.
func (t SetCrowdPenalty) Name() string { return "setCrowdPenalty" }

func (t SetCrowdPenalty) apply(current State, _ time.Time, _ time.Duration) (State, error) {
	if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) {
		return current, fmt.Errorf("%w: crowd penalty must be a finite number", ErrInvalidTransition)
	}
	next := current
	next.GlobalCrowdPenalty = math.Max(0, math.Min(MaxCrowdPenalty, t.Value))
	return next, nil
}

// SetConstructionActive switches the construction modifier on or off.
// A nil Active flips the current value.
type SetConstructionActive struct {
	Active *bool
}

// Name implements Transition.
func (t SetConstructionActive) Name() string { return "setConstructionActive" }

func (t SetConstructionActive) apply(current State, _ time.Time, _ time.Duration) (State, error) {
	active := !current.ConstructionActive()
	if t.Active != nil {
		active = *t.Active
	}
	next := current
	next.GlobalConstructionPenalty = 0
	if active {
		next.GlobalConstructionPenalty = ConstructionPenaltyValue
	}
	return next, nil
}
