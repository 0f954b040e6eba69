// Package ingest turns named hazard events into state transitions and observer notifications.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/broadcast"
	"github.com/saferoute/saferoute/internal/hazard"
)

// ErrUnknownEvent is returned for event names outside the supported set.
var ErrUnknownEvent = errors.New("unknown event")

// Event names.
const (
	EventStartStorm         = "startStorm"
	EventStartRain          = "startRain"
	EventStartFog           = "startFog"
	EventClearWeather       = "clearWeather"
	EventCrowdSpike         = "crowdSpike"
	EventClearCrowdSpike    = "clearCrowdSpike"
	EventToggleConstruction = "toggleConstruction"
)

// CrowdSpikePenalty is the global crowd penalty set by a crowd spike.
const CrowdSpikePenalty = 20.0

// Event is a named hazard event. Active is only read by toggleConstruction.
type Event struct {
	Name   string `json:"event"`
	Active *bool  `json:"active,omitempty"`
}

// Result is the outcome of an applied event.
type Result struct {
	Event   string       `json:"event"`
	Message string       `json:"message"`
	State   hazard.State `json:"state"`
}

// Applier applies hazard events. Sources depend on this rather than *Service.
type Applier interface {
	Apply(ctx context.Context, ev Event) (Result, error)
}

// ServiceConfig holds configuration for the ingest service.
type ServiceConfig struct {
	Store     *hazard.Store
	Publisher broadcast.Publisher
	Clock     clockwork.Clock
	Logger    zerolog.Logger
}

// Service maps each event to exactly one store transition followed by notifications.
type Service struct {
	// mu keeps notifications in commit order.
	mu sync.Mutex

	store  *hazard.Store
	pub    broadcast.Publisher
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewService creates an ingest service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Service{
		store:  cfg.Store,
		pub:    cfg.Publisher,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
}

// Events returns the supported event names.
func Events() []string {
	return []string{
		EventStartStorm, EventStartRain, EventStartFog, EventClearWeather,
		EventCrowdSpike, EventClearCrowdSpike, EventToggleConstruction,
	}
}

// Transition returns the store transition for ev.
func Transition(ev Event) (hazard.Transition, error) {
	switch ev.Name {
	case EventStartStorm:
		return hazard.SetWeather{Condition: hazard.ConditionStorm, Intensity: 0.8}, nil
	case EventStartRain:
		return hazard.SetWeather{Condition: hazard.ConditionRain, Intensity: 0.6}, nil
	case EventStartFog:
		return hazard.SetWeather{Condition: hazard.ConditionFog, Intensity: 0.7}, nil
	case EventClearWeather:
		return hazard.SetWeather{Condition: hazard.ConditionClear, Intensity: 0}, nil
	case EventCrowdSpike:
		return hazard.SetCrowdPenalty{Value: CrowdSpikePenalty}, nil
	case EventClearCrowdSpike:
		return hazard.SetCrowdPenalty{Value: 0}, nil
	case EventToggleConstruction:
		return hazard.SetConstructionActive{Active: ev.Active}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Name)
	}
}

// Apply commits the event's transition and publishes the delta plus an event_applied summary.
// Every successful call publishes, even when the state did not change.
func (s *Service) Apply(_ context.Context, ev Event) (Result, error) {
	t, err := Transition(ev)
	if err != nil {
		s.logger.Warn().Str("event", ev.Name).Msg("rejected unknown hazard event")
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Apply(t)
	if err != nil {
		return Result{}, fmt.Errorf("applying %s: %w", ev.Name, err)
	}

	now := s.clock.Now()
	s.publish(delta(t, state, now))
	s.publish(broadcast.Message{
		Type:      broadcast.TypeEventApplied,
		Payload:   broadcast.EventApplied{Event: ev.Name, Timestamp: now, State: state},
		Timestamp: now,
	})

	s.logger.Info().
		Str("event", ev.Name).
		Str("weather_condition", string(state.WeatherCondition)).
		Float64("crowd_penalty", state.GlobalCrowdPenalty).
		Float64("construction_penalty", state.GlobalConstructionPenalty).
		Msg("hazard event applied")

	return Result{
		Event:   ev.Name,
		Message: fmt.Sprintf("Event %s applied successfully", ev.Name),
		State:   state,
	}, nil
}

func (s *Service) publish(msg broadcast.Message) {
	if s.pub != nil {
		s.pub.Publish(msg)
	}
}

func delta(t hazard.Transition, state hazard.State, now time.Time) broadcast.Message {
	msg := broadcast.Message{Timestamp: now}

	switch t.(type) {
	case hazard.SetWeather:
		msg.Type = broadcast.TypeWeatherUpdate
		msg.Payload = broadcast.WeatherUpdate{
			Condition: string(state.WeatherCondition),
			Intensity: state.WeatherIntensity,
			StartsAt:  state.WeatherWindowStart,
			EndsAt:    state.WeatherWindowEnd,
		}
	case hazard.SetCrowdPenalty:
		msg.Type = broadcast.TypeCrowdUpdate
		msg.Payload = broadcast.CrowdUpdate{Global: true, Penalty: state.GlobalCrowdPenalty}
	case hazard.SetConstructionActive:
		active := state.ConstructionActive()
		penalty := state.GlobalConstructionPenalty
		msg.Type = broadcast.TypeEventApplied
		msg.Payload = broadcast.EventApplied{Event: "construction", Active: &active, Penalty: &penalty, Timestamp: now}
	}

	return msg
}
