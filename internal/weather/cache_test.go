package weather_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/weather"
)

// mockFetcher is a mock weather provider for testing.
type mockFetcher struct {
	mu        sync.Mutex
	callCount int
	reading   weather.Reading
	err       error
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		reading: weather.Reading{
			Temperature:      14.5,
			PrecipitationMm:  1.2,
			WindKmh:          25,
			WeatherCode:      63,
			VisibilityMeters: 4000,
		},
	}
}

func (m *mockFetcher) Name() string {
	return "mock"
}

func (m *mockFetcher) FetchWeather(_ context.Context, _, _ float64) (*weather.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	r := m.reading
	return &r, nil
}

func (m *mockFetcher) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockFetcher) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// mockMetrics counts recorder calls.
type mockMetrics struct {
	mu        sync.Mutex
	hits      int
	misses    int
	requests  int
	failures  int
	fallbacks int
}

func (m *mockMetrics) RecordRequest(_, _ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if err != nil {
		m.failures++
	}
}

func (m *mockMetrics) RecordCacheHit(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *mockMetrics) RecordCacheMiss(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *mockMetrics) RecordFallback(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func newTestCache(clock clockwork.Clock, metrics weather.MetricsRecorder) *weather.Cache {
	return weather.NewCache(weather.CacheConfig{
		Logger:  zerolog.Nop(),
		TTL:     10 * time.Minute,
		Clock:   clock,
		Metrics: metrics,
	})
}

func TestCache_Get_Miss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newMockFetcher()
	cache := newTestCache(clock, nil)

	sample := cache.Get(context.Background(), 19.0760, 72.8777, fetcher)

	assert.Equal(t, 1, fetcher.getCallCount())
	assert.False(t, sample.Degraded)
	assert.Equal(t, 14.5, sample.Temperature)
	assert.Equal(t, 4.0, sample.VisibilityKm)
	assert.Equal(t, "rain", sample.Condition)
	// rain 10 + visibility 10 + wind 5 + severe 0
	assert.Equal(t, 25.0, sample.Penalty)
	assert.Equal(t, clock.Now(), sample.FetchedAt)
}

func TestCache_Get_HitWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newMockFetcher()
	metrics := &mockMetrics{}
	cache := newTestCache(clock, metrics)

	first := cache.Get(context.Background(), 19.07601, 72.87772, fetcher)
	clock.Advance(9 * time.Minute)
	// Rounds to the same 4-decimal key.
	second := cache.Get(context.Background(), 19.07603, 72.87768, fetcher)

	assert.Equal(t, 1, fetcher.getCallCount(), "second call must not reach the provider")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 1, metrics.requests)
}

func TestCache_Get_ReturnsIndependentCopies(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newMockFetcher()
	fetcher.reading.Hourly = []weather.HourlyReading{
		{Time: clock.Now(), Temperature: 14, WeatherCode: 61},
		{Time: clock.Now().Add(time.Hour), Temperature: 13, WeatherCode: 63},
	}
	cache := newTestCache(clock, nil)

	first := cache.Get(context.Background(), 19.0760, 72.8777, fetcher)
	require.Len(t, first.Hourly, 2)
	first.Hourly[0].Temperature = 99
	first.Hourly = append(first.Hourly[:1], first.Hourly[0])

	second := cache.Get(context.Background(), 19.0760, 72.8777, fetcher)
	assert.Equal(t, 1, fetcher.getCallCount())
	require.Len(t, second.Hourly, 2)
	assert.Equal(t, 14.0, second.Hourly[0].Temperature)
	assert.Equal(t, 13.0, second.Hourly[1].Temperature)
}

func TestCache_Get_ExpiryTriggersOneFetch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newMockFetcher()
	cache := newTestCache(clock, nil)

	first := cache.Get(context.Background(), 52.37, 4.89, fetcher)
	clock.Advance(10 * time.Minute)

	second := cache.Get(context.Background(), 52.37, 4.89, fetcher)
	assert.Equal(t, 2, fetcher.getCallCount())
	assert.True(t, second.FetchedAt.After(first.FetchedAt))

	// The replacement is fresh again.
	_ = cache.Get(context.Background(), 52.37, 4.89, fetcher)
	assert.Equal(t, 2, fetcher.getCallCount())
}

func TestCache_Get_DifferentKeys(t *testing.T) {
	fetcher := newMockFetcher()
	cache := newTestCache(clockwork.NewFakeClock(), nil)

	cache.Get(context.Background(), 52.3700, 4.8900, fetcher)
	cache.Get(context.Background(), 52.3710, 4.8900, fetcher)

	assert.Equal(t, 2, fetcher.getCallCount())
	assert.Equal(t, 2, cache.Stats().TotalEntries)
}

func TestCache_Get_ProviderFailureReturnsFallback(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newMockFetcher()
	fetcher.setError(errors.New("connection refused"))
	metrics := &mockMetrics{}
	cache := newTestCache(clock, metrics)

	sample := cache.Get(context.Background(), 52.37, 4.89, fetcher)

	assert.True(t, sample.Degraded)
	assert.Equal(t, "clear", sample.Condition)
	assert.Zero(t, sample.Penalty)
	assert.Equal(t, 1, metrics.failures)
	assert.Equal(t, 1, metrics.fallbacks)
	assert.Zero(t, cache.Stats().TotalEntries, "fallback samples are not cached")

	// Provider recovers: the next call fetches again.
	fetcher.setError(nil)
	sample = cache.Get(context.Background(), 52.37, 4.89, fetcher)
	assert.False(t, sample.Degraded)
	assert.Equal(t, 2, fetcher.getCallCount())
}

func TestCache_Get_StaleIfError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newMockFetcher()
	cache := weather.NewCache(weather.CacheConfig{
		Logger:          zerolog.Nop(),
		TTL:             10 * time.Minute,
		StaleIfErrorTTL: time.Hour,
		Clock:           clock,
	})

	fresh := cache.Get(context.Background(), 52.37, 4.89, fetcher)

	clock.Advance(20 * time.Minute)
	fetcher.setError(errors.New("upstream 503"))
	stale := cache.Get(context.Background(), 52.37, 4.89, fetcher)
	assert.Equal(t, fresh, stale)

	clock.Advance(time.Hour)
	degraded := cache.Get(context.Background(), 52.37, 4.89, fetcher)
	assert.True(t, degraded.Degraded)
}

func TestCache_Get_InvalidCoordinates(t *testing.T) {
	fetcher := newMockFetcher()
	cache := newTestCache(clockwork.NewFakeClock(), nil)

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{name: "latitude too high", lat: 91, lon: 0},
		{name: "longitude too low", lat: 0, lon: -181},
		{name: "NaN", lat: math.NaN(), lon: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := cache.Get(context.Background(), tt.lat, tt.lon, fetcher)
			assert.True(t, sample.Degraded)
		})
	}
	assert.Zero(t, fetcher.getCallCount())
}

func TestCache_Get_ConcurrentMissesConverge(t *testing.T) {
	fetcher := newMockFetcher()
	cache := newTestCache(clockwork.NewFakeClock(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := cache.Get(context.Background(), 40.7128, -74.0060, fetcher)
			assert.False(t, s.Degraded)
		}()
	}
	wg.Wait()

	stats := cache.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.GreaterOrEqual(t, fetcher.getCallCount(), 1)
}

func TestCache_Invalidate(t *testing.T) {
	fetcher := newMockFetcher()
	cache := newTestCache(clockwork.NewFakeClock(), nil)

	cache.Get(context.Background(), 52.37, 4.89, fetcher)
	cache.Invalidate()
	cache.Get(context.Background(), 52.37, 4.89, fetcher)

	assert.Equal(t, 2, fetcher.getCallCount())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "19.0760_72.8777", weather.Key(19.07601, 72.87774))
	assert.Equal(t, weather.Key(52.370049, 4.89), weather.Key(52.37001, 4.890001))
	require.NotEqual(t, weather.Key(52.3700, 4.89), weather.Key(52.3701, 4.89))
}
