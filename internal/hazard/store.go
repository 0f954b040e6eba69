package hazard

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// StoreConfig holds configuration for the hazard store.
type StoreConfig struct {
	// Clock is the time source for window and update timestamps (default: real clock).
	Clock clockwork.Clock

	// WeatherWindow is how long a weather transition is advertised as valid (default: 1 hour).
	// The window is advisory; nothing expires it automatically.
	WeatherWindow time.Duration

	// Logger for store operations.
	Logger zerolog.Logger
}

// Store is the single owner of the hazard state.
// Reads return value copies; transitions are serialized by the write lock.
type Store struct {
	clock  clockwork.Clock
	window time.Duration
	logger zerolog.Logger

	mu    sync.RWMutex
	state State
}

// NewStore creates a store initialised with DefaultState.
func NewStore(cfg StoreConfig) *Store {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	window := cfg.WeatherWindow
	if window == 0 {
		window = time.Hour
	}

	return &Store{
		clock:  clock,
		window: window,
		logger: cfg.Logger,
		state:  DefaultState(clock.Now()),
	}
}

// Read returns a consistent snapshot of the current state.
func (s *Store) Read() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Apply validates and commits a transition, returning the resulting snapshot.
// A rejected transition leaves the state untouched. Reapplying a transition
// yields the same hazard fields; only UpdatedAt and, for weather, the window move.
func (s *Store) Apply(t Transition) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	next, err := t.apply(s.state, now, s.window)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("transition", t.Name()).
			Msg("hazard transition rejected")
		return s.state, err
	}

	next.UpdatedAt = now
	s.state = next

	s.logger.Debug().
		Str("transition", t.Name()).
		Str("weather", string(next.WeatherCondition)).
		Float64("crowd_penalty", next.GlobalCrowdPenalty).
		Float64("construction_penalty", next.GlobalConstructionPenalty).
		Msg("hazard transition applied")

	return next, nil
}
