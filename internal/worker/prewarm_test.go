package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/weather"
	"github.com/saferoute/saferoute/internal/worker"
)

type recordingSource struct {
	mu       sync.Mutex
	calls    []worker.Point
	degraded map[worker.Point]bool
}

func (s *recordingSource) Get(_ context.Context, lat, lon float64, _ weather.Fetcher) weather.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := worker.Point{Lat: lat, Lon: lon}
	s.calls = append(s.calls, p)
	if s.degraded[p] {
		return weather.FallbackSample(time.Now())
	}
	return weather.Sample{Condition: "rain", Penalty: 10}
}

func (s *recordingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type failingFetcher struct{}

func (failingFetcher) FetchWeather(context.Context, float64, float64) (*weather.Reading, error) {
	return nil, errors.New("unreachable")
}
func (failingFetcher) Name() string { return "failing" }

func singleTarget(points ...worker.Point) worker.PrewarmConfig {
	return worker.PrewarmConfig{
		Targets:     []worker.PrewarmTarget{{Name: "Test", Points: points}},
		Concurrency: 2,
		Timeout:     time.Second,
	}
}

func TestDefaultPrewarmConfig(t *testing.T) {
	cfg := worker.DefaultPrewarmConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Interval)
	assert.NotEmpty(t, cfg.Targets)
	assert.Greater(t, cfg.TotalPoints(), 10)
}

func TestPrewarmConfig_AllPointsByPriority(t *testing.T) {
	cfg := worker.PrewarmConfig{
		Targets: []worker.PrewarmTarget{
			{Name: "Low", Priority: 3, Points: []worker.Point{{Lat: 3, Lon: 3}}},
			{Name: "High", Priority: 1, Points: []worker.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
		},
	}

	points := cfg.AllPoints()
	require.Len(t, points, 3)
	assert.Equal(t, worker.Point{Lat: 1, Lon: 1}, points[0])
	assert.Equal(t, worker.Point{Lat: 3, Lon: 3}, points[2])
	assert.Equal(t, "Low", cfg.Targets[0].Name, "config order is not mutated")
}

func TestPrewarmJob_Run(t *testing.T) {
	bad := worker.Point{Lat: 19.2, Lon: 72.9}
	source := &recordingSource{degraded: map[worker.Point]bool{bad: true}}

	job := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config:  singleTarget(worker.Point{Lat: 19.0, Lon: 72.8}, worker.Point{Lat: 19.1, Lon: 72.85}, bad),
		Logger:  zerolog.Nop(),
		Cache:   source,
		Fetcher: failingFetcher{},
	})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.TotalPoints)
	assert.Equal(t, 2, result.Warmed)
	assert.Equal(t, 1, result.Degraded)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, 3, source.count())

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(2), m.WarmedPoints)
	assert.Equal(t, int64(1), m.DegradedPoints)
}

func TestPrewarmJob_RealCacheDegradesOnProviderFailure(t *testing.T) {
	cache := weather.NewCache(weather.CacheConfig{Logger: zerolog.Nop()})
	job := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config:  singleTarget(worker.Point{Lat: 19.0, Lon: 72.8}),
		Logger:  zerolog.Nop(),
		Cache:   cache,
		Fetcher: failingFetcher{},
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Degraded)
	assert.Zero(t, cache.Stats().TotalEntries, "fallback samples are not cached")
}

func TestPrewarmJob_Run_NoCache(t *testing.T) {
	job := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config: singleTarget(worker.Point{Lat: 1, Lon: 1}),
		Logger: zerolog.Nop(),
	})

	result := job.Run(context.Background())
	assert.Equal(t, 1, result.Degraded)
}

func TestPrewarmJob_Run_ContextCancellation(t *testing.T) {
	points := make([]worker.Point, 50)
	for i := range points {
		points[i] = worker.Point{Lat: 19 + float64(i)*0.01, Lon: 72.8}
	}
	source := &recordingSource{}

	job := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config:  singleTarget(points...),
		Logger:  zerolog.Nop(),
		Cache:   source,
		Fetcher: failingFetcher{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)
	assert.Equal(t, 50, result.Skipped)
	assert.Zero(t, source.count())
}

func TestPrewarmJob_StartRunsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := &recordingSource{}

	cfg := singleTarget(worker.Point{Lat: 19.0, Lon: 72.8})
	cfg.Interval = time.Minute
	job := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Cache:   source,
		Fetcher: failingFetcher{},
		Clock:   clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Eventually(t, func() bool { return job.GetMetrics().TotalRuns == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return job.GetMetrics().TotalRuns == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	snapshot := job.MetricsSnapshot()
	assert.Contains(t, snapshot, "total_runs")
	assert.Contains(t, snapshot, "last_run_duration")
}
