package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/weather"
)

// WeatherSource resolves and caches a weather sample for a point.
type WeatherSource interface {
	Get(ctx context.Context, lat, lon float64, fetcher weather.Fetcher) weather.Sample
}

// PrewarmJob keeps the weather cache populated for hot points so that route
// scoring rarely waits on the provider.
type PrewarmJob struct {
	config  PrewarmConfig
	logger  zerolog.Logger
	cache   WeatherSource
	fetcher weather.Fetcher
	clock   clockwork.Clock

	metrics *PrewarmMetrics
}

// PrewarmMetrics tracks prewarm job statistics.
type PrewarmMetrics struct {
	mu sync.RWMutex

	TotalRuns      int64
	WarmedPoints   int64
	DegradedPoints int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PrewarmJobConfig holds configuration for creating a PrewarmJob.
type PrewarmJobConfig struct {
	Config  PrewarmConfig
	Logger  zerolog.Logger
	Cache   WeatherSource
	Fetcher weather.Fetcher
	Clock   clockwork.Clock
}

// NewPrewarmJob creates a new prewarm job.
func NewPrewarmJob(cfg PrewarmJobConfig) *PrewarmJob {
	config := cfg.Config
	defaults := DefaultPrewarmConfig()
	if len(config.Targets) == 0 {
		config.Targets = defaults.Targets
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &PrewarmJob{
		config:  config,
		logger:  cfg.Logger,
		cache:   cfg.Cache,
		fetcher: cfg.Fetcher,
		clock:   clock,
		metrics: &PrewarmMetrics{},
	}
}

// PrewarmResult contains the result of one run.
type PrewarmResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Warmed      int
	Degraded    int
	Skipped     int
}

// Run looks up every configured point once. Points whose lookup degrades to
// the fallback sample are counted but never fail the run.
func (j *PrewarmJob) Run(ctx context.Context) *PrewarmResult {
	startTime := j.clock.Now()
	result := &PrewarmResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting weather prewarm")

	points := j.config.AllPoints()

	pointsChan := make(chan Point, len(points))
	resultsChan := make(chan bool, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.prewarmWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for warm := range resultsChan {
		if warm {
			result.Warmed++
		} else {
			result.Degraded++
		}
	}
	result.Skipped = result.TotalPoints - result.Warmed - result.Degraded

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("warmed", result.Warmed).
		Int("degraded", result.Degraded).
		Int("skipped", result.Skipped).
		Msg("weather prewarm completed")

	return result
}

func (j *PrewarmJob) prewarmWorker(ctx context.Context, points <-chan Point, results chan<- bool) {
	for point := range points {
		if ctx.Err() != nil {
			return
		}
		results <- j.prewarmPoint(ctx, point)
	}
}

func (j *PrewarmJob) prewarmPoint(ctx context.Context, point Point) bool {
	if j.cache == nil || j.fetcher == nil {
		return false
	}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	sample := j.cache.Get(pointCtx, point.Lat, point.Lon, j.fetcher)
	return !sample.Degraded
}

// Start runs the job immediately and then every Interval until ctx is done.
func (j *PrewarmJob) Start(ctx context.Context) {
	ticker := j.clock.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("weather prewarm stopped")
			return
		case <-ticker.Chan():
			j.Run(ctx)
		}
	}
}

func (j *PrewarmJob) updateMetrics(result *PrewarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.WarmedPoints += int64(result.Warmed)
	j.metrics.DegradedPoints += int64(result.Degraded)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrewarmJob) GetMetrics() PrewarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrewarmMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		WarmedPoints:    j.metrics.WarmedPoints,
		DegradedPoints:  j.metrics.DegradedPoints,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrewarmJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"warmed_points":     m.WarmedPoints,
		"degraded_points":   m.DegradedPoints,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
