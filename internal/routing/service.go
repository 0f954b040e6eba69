package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the caching routing service.
type ServiceConfig struct {
	// Provider is the upstream routing provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long alternatives are reused (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize quantizes endpoints in degrees (default: 0.001, about 110 m).
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale routes on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// Timeout bounds each provider call (default: 10 seconds).
	Timeout time.Duration

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// Service is a Provider that caches another Provider's alternatives.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	timeout         time.Duration
	clock           clockwork.Clock

	mu    sync.RWMutex
	cache map[string]cachedAlternatives
}

type cachedAlternatives struct {
	alts      *Alternatives
	fetchedAt time.Time
}

// NewService creates a new caching routing service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheGridSize == 0 {
		cfg.CacheGridSize = 0.001
	}
	if cfg.StaleIfErrorTTL == 0 {
		cfg.StaleIfErrorTTL = 15 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cfg.CacheTTL,
		cacheGridSize:   cfg.CacheGridSize,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		timeout:         cfg.Timeout,
		clock:           cfg.Clock,
		cache:           make(map[string]cachedAlternatives),
	}
}

// Name returns the underlying provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetAlternativeRoutes returns cached alternatives when fresh, otherwise asks the provider.
func (s *Service) GetAlternativeRoutes(ctx context.Context, req AlternativesRequest) (*Alternatives, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: err}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: err}
	}

	key := s.cacheKey(req)
	now := s.clock.Now()

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && now.Sub(cached.fetchedAt) < s.cacheTTL {
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for alternatives")
		return cached.alts, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	alts, err := s.provider.GetAlternativeRoutes(callCtx, req)
	if err != nil {
		s.logger.Error().Err(err).
			Str("profile", string(req.Profile)).
			Str("provider", s.provider.Name()).
			Msg("failed to fetch alternatives")

		if ok && retryable(err) && now.Sub(cached.fetchedAt) < s.staleIfErrorTTL {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Str("cache_key", key).
				Msg("serving stale alternatives due to provider error")
			return cached.alts, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cachedAlternatives{alts: alts, fetchedAt: s.clock.Now()}
	s.evictLocked(s.clock.Now())
	s.mu.Unlock()

	return alts, nil
}

// retryable reports whether err is a transient provider error that may be
// answered from an expired entry. NO_ROUTE and MISCONFIGURED always surface.
func retryable(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.IsRetryable()
}

// cacheKey quantizes both endpoints to the grid.
// Format: {profile}:{maxAlternatives}:{originLat},{originLon}:{destLat},{destLon}.
func (s *Service) cacheKey(req AlternativesRequest) string {
	q := func(v float64) float64 { return math.Floor(v/s.cacheGridSize) * s.cacheGridSize }
	return fmt.Sprintf("%s:%d:%.4f,%.4f:%.4f,%.4f",
		req.Profile, req.MaxAlternatives,
		q(req.Origin.Lat), q(req.Origin.Lon),
		q(req.Destination.Lat), q(req.Destination.Lon),
	)
}

func (s *Service) evictLocked(now time.Time) {
	for key, c := range s.cache {
		if now.Sub(c.fetchedAt) >= s.staleIfErrorTTL {
			delete(s.cache, key)
		}
	}
}

// InvalidateCache clears all cached alternatives.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedAlternatives)
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int    `json:"total_entries"`
	FreshEntries int    `json:"fresh_entries"`
	Provider     string `json:"provider"`
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	fresh := 0
	for _, c := range s.cache {
		if now.Sub(c.fetchedAt) < s.cacheTTL {
			fresh++
		}
	}

	return CacheStats{TotalEntries: len(s.cache), FreshEntries: fresh, Provider: s.provider.Name()}
}
