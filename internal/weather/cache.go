package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// MetricsRecorder receives cache and upstream call observations.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
	RecordFallback(provider, operation string)
}

const cacheOperation = "current_and_hourly"

// CacheConfig holds configuration for the weather cache.
type CacheConfig struct {
	// Logger for cache operations.
	Logger zerolog.Logger

	// TTL is how long a sample stays fresh (default: 10 minutes).
	TTL time.Duration

	// FetchTimeout bounds a single upstream fetch (default: 5 seconds).
	FetchTimeout time.Duration

	// StaleIfErrorTTL allows serving an expired sample when the provider fails.
	// Zero disables it and the fallback sample is returned instead.
	StaleIfErrorTTL time.Duration

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock

	// Metrics is optional.
	Metrics MetricsRecorder
}

// Cache memoizes weather samples keyed by coordinates rounded to 4 decimals.
// Entries are replaced wholesale on expiry; they are never mutated.
type Cache struct {
	logger          zerolog.Logger
	ttl             time.Duration
	fetchTimeout    time.Duration
	staleIfErrorTTL time.Duration
	clock           clockwork.Clock
	metrics         MetricsRecorder

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	sample     Sample
	insertedAt time.Time
}

// NewCache creates a new weather cache.
func NewCache(cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 5 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache{
		logger:          cfg.Logger,
		ttl:             ttl,
		fetchTimeout:    fetchTimeout,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		clock:           clock,
		metrics:         cfg.Metrics,
		entries:         make(map[string]cacheEntry),
	}
}

// Key returns the cache key for a coordinate (~11 m precision).
func Key(lat, lon float64) string {
	return fmt.Sprintf("%.4f_%.4f", lat, lon)
}

// Get returns the sample for a point. A fresh entry is served without I/O; otherwise
// fetcher is called and its result replaces the entry. Get never fails: when the
// provider errors the fallback sample is returned and nothing is cached.
// Concurrent misses for one key may each fetch; the last write wins.
func (c *Cache) Get(ctx context.Context, lat, lon float64, fetcher Fetcher) Sample {
	if err := validateCoordinates(lat, lon); err != nil {
		c.logger.Warn().
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("invalid coordinates for weather lookup, using fallback")
		c.recordFallback(fetcher.Name())
		return FallbackSample(c.clock.Now())
	}

	key := Key(lat, lon)
	providerName := fetcher.Name()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	now := c.clock.Now()
	if ok {
		if entry.insertedAt.IsZero() {
			// Entries always carry a timestamp; treat a missing one as expired.
			c.logger.Error().Str("cache_key", key).Msg("weather cache entry missing timestamp")
		} else if now.Sub(entry.insertedAt) < c.ttl {
			c.recordHit(providerName)
			c.logger.Debug().Str("cache_key", key).Msg("weather cache hit")
			return entry.sample.clone()
		}
	}
	c.recordMiss(providerName)

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", providerName).
		Msg("fetching weather from provider")

	start := c.clock.Now()
	reading, err := fetcher.FetchWeather(fetchCtx, lat, lon)
	if err == nil && reading == nil {
		err = ErrProviderUnavailable
	}
	c.recordRequest(providerName, c.clock.Since(start), err)

	if err != nil {
		if ok && !entry.insertedAt.IsZero() && c.staleIfErrorTTL > 0 &&
			now.Sub(entry.insertedAt) < c.staleIfErrorTTL {
			c.logger.Warn().
				Err(err).
				Time("fetched_at", entry.insertedAt).
				Str("cache_key", key).
				Msg("serving stale weather data due to provider error")
			return entry.sample.clone()
		}

		c.logger.Warn().
			Err(err).
			Str("provider", providerName).
			Str("cache_key", key).
			Msg("weather provider failed, degraded mode: using fallback sample")
		c.recordFallback(providerName)
		return FallbackSample(now)
	}

	insertedAt := c.clock.Now()
	sample := NewSample(*reading, insertedAt)

	c.mu.Lock()
	c.entries[key] = cacheEntry{sample: sample, insertedAt: insertedAt}
	c.mu.Unlock()

	return sample.clone()
}

// Invalidate drops every cached sample.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	fresh := 0
	for _, e := range c.entries {
		if now.Sub(e.insertedAt) < c.ttl {
			fresh++
		}
	}

	return CacheStats{
		TotalEntries: len(c.entries),
		FreshEntries: fresh,
		TTL:          c.ttl,
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int           `json:"total_entries"`
	FreshEntries int           `json:"fresh_entries"`
	TTL          time.Duration `json:"ttl"`
}

func (c *Cache) recordHit(provider string) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(provider, cacheOperation)
	}
}

func (c *Cache) recordMiss(provider string) {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(provider, cacheOperation)
	}
}

func (c *Cache) recordFallback(provider string) {
	if c.metrics != nil {
		c.metrics.RecordFallback(provider, cacheOperation)
	}
}

func (c *Cache) recordRequest(provider string, d time.Duration, err error) {
	if c.metrics != nil {
		c.metrics.RecordRequest(provider, cacheOperation, d, err)
	}
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) ||
		lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
