package safety

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/scoring"
	"github.com/saferoute/saferoute/internal/weather"
	"github.com/saferoute/saferoute/pkg/polyline"
)

// HazardReader returns the current hazard snapshot.
type HazardReader interface {
	Read() hazard.State
}

// WeatherSource resolves a weather sample for a point. It never fails.
type WeatherSource interface {
	Get(ctx context.Context, lat, lon float64, fetcher weather.Fetcher) weather.Sample
}

// MetricsRecorder records upstream call metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ServiceConfig holds configuration for the scoring orchestrator.
type ServiceConfig struct {
	Routing routing.Provider
	Hazards HazardReader

	// Weather and Fetcher are optional; without them scoring uses hazard toggles only.
	Weather WeatherSource
	Fetcher weather.Fetcher

	Engine scoring.Engine

	// MaxAlternatives requested from the routing provider (default: 2).
	MaxAlternatives int

	// Concurrency bounds candidates scored at once (default: 4).
	Concurrency int

	Metrics MetricsRecorder
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// Service orchestrates routing, weather lookups and scoring.
type Service struct {
	routing         routing.Provider
	hazards         HazardReader
	weather         WeatherSource
	fetcher         weather.Fetcher
	engine          scoring.Engine
	maxAlternatives int
	concurrency     int
	metrics         MetricsRecorder
	clock           clockwork.Clock
	logger          zerolog.Logger
}

// NewService creates the orchestrator.
func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = 2
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Service{
		routing:         cfg.Routing,
		hazards:         cfg.Hazards,
		weather:         cfg.Weather,
		fetcher:         cfg.Fetcher,
		engine:          cfg.Engine,
		maxAlternatives: cfg.MaxAlternatives,
		concurrency:     cfg.Concurrency,
		metrics:         cfg.Metrics,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
	}
}

// Mode returns the configured scoring mode.
func (s *Service) Mode() scoring.Mode {
	if s.engine.Mode == "" {
		return scoring.ModeToggle
	}
	return s.engine.Mode
}

// ScoreRoutes fetches alternatives and scores each one against a single hazard snapshot.
// Routing failures are returned; weather failures degrade to the fallback sample.
func (s *Service) ScoreRoutes(ctx context.Context, req Request) (*Response, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if req.TimeOfDay == "" {
		req.TimeOfDay = TimeOfDayAt(now)
	}

	start := s.clock.Now()
	alts, err := s.routing.GetAlternativeRoutes(ctx, routing.AlternativesRequest{
		Origin:          req.Origin,
		Destination:     req.Destination,
		Profile:         ProfileFor(req.Vehicle),
		MaxAlternatives: s.maxAlternatives,
	})
	if s.metrics != nil {
		s.metrics.RecordRequest(s.routing.Name(), "alternatives", s.clock.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching alternatives: %w", err)
	}
	if alts == nil || len(alts.Routes) == 0 {
		return nil, &routing.Error{
			Provider: s.routing.Name(),
			Code:     "NO_ROUTE",
			Message:  "routing provider returned no candidates",
			Err:      routing.ErrNoRouteFound,
		}
	}

	state := s.hazards.Read()
	candidates := make([]Candidate, len(alts.Routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range alts.Routes {
		g.Go(func() error {
			candidates[i] = s.scoreCandidate(gctx, req, state, alts.Routes[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("vehicle", string(req.Vehicle)).
		Str("time_of_day", string(req.TimeOfDay)).
		Int("candidates", len(candidates)).
		Float64("best_score", bestScore(candidates)).
		Msg("scored route candidates")

	return &Response{
		Routes:      candidates,
		Hazard:      state,
		Mode:        s.Mode(),
		Vehicle:     req.Vehicle,
		TimeOfDay:   req.TimeOfDay,
		Provider:    alts.Provider,
		GeneratedAt: now,
	}, nil
}

func (s *Service) scoreCandidate(ctx context.Context, req Request, state hazard.State, route routing.Route) Candidate {
	distanceKm := route.DistanceMeters / 1000
	if distanceKm <= 0 {
		distanceKm = polyline.Length(route.Geometry) / 1000
	}
	if distanceKm <= 0 {
		distanceKm = polyline.Distance(toPoint(req.Origin), toPoint(req.Destination)) / 1000
	}

	mid, ok := polyline.Midpoint(route.Geometry)
	if !ok {
		mid = polyline.Coordinate{
			Lat: (req.Origin.Lat + req.Destination.Lat) / 2,
			Lon: (req.Origin.Lon + req.Destination.Lon) / 2,
		}
	}

	var sample *weather.Sample
	if s.weather != nil && s.fetcher != nil {
		ws := s.weather.Get(ctx, mid.Lat, mid.Lon, s.fetcher)
		sample = &ws
	}

	breakdown := s.engine.Score(scoring.Input{
		DistanceKm:     distanceKm,
		PolylinePoints: len(route.Geometry),
		State:          state,
		Toggles:        req.Toggles,
		Vehicle:        req.Vehicle,
		TimeOfDay:      req.TimeOfDay,
		Weather:        sample,
		CrowdDensity:   req.CrowdDensity,
	})

	if fs := breakdown.FinalScore; math.IsNaN(fs) || fs < 0 || fs > 100 {
		s.logger.Error().Float64("final_score", fs).Msg("score out of bounds, clamping")
		breakdown.FinalScore = scoring.Clamp(fs)
	}

	c := Candidate{
		ID:            uuid.NewString(),
		Polyline:      make([][2]float64, len(route.Geometry)),
		DistanceKm:    math.Round(distanceKm*10) / 10,
		TravelTimeMin: math.Round(route.DurationSeconds / 60),
		Summary:       route.Summary,
		Breakdown:     breakdown.Rounded(),
	}
	for i, p := range route.Geometry {
		c.Polyline[i] = [2]float64{p.Lon, p.Lat}
	}
	if sample != nil {
		c.Weather = *sample
	} else {
		c.Weather = weather.FallbackSample(s.clock.Now())
	}
	return c
}

func validate(req *Request) error {
	if err := req.Origin.Validate(); err != nil {
		return fmt.Errorf("%w: origin: %w", ErrInvalidRequest, err)
	}
	if err := req.Destination.Validate(); err != nil {
		return fmt.Errorf("%w: destination: %w", ErrInvalidRequest, err)
	}

	v, err := scoring.ParseVehicle(string(req.Vehicle))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Vehicle = v

	tod, err := scoring.ParseTimeOfDay(string(req.TimeOfDay))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.TimeOfDay = tod

	if d := req.CrowdDensity; d != nil && (math.IsNaN(*d) || *d < 0 || *d > 1) {
		return fmt.Errorf("%w: crowd density %v out of range [0, 1]", ErrInvalidRequest, *d)
	}
	return nil
}

func toPoint(c routing.Coordinate) polyline.Coordinate {
	return polyline.Coordinate{Lat: c.Lat, Lon: c.Lon}
}

func bestScore(cs []Candidate) float64 {
	best := 0.0
	for _, c := range cs {
		best = math.Max(best, c.Breakdown.FinalScore)
	}
	return best
}

// IsValidation reports whether err was caused by the request rather than an upstream.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, routing.ErrInvalidCoordinates)
}
