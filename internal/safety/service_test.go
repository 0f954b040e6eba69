package safety_test

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

	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/internal/scoring"
	"github.com/saferoute/saferoute/internal/weather"
	"github.com/saferoute/saferoute/pkg/polyline"
)

var (
	morning = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	origin  = routing.Coordinate{Lat: 19.0760, Lon: 72.8777}
	dest    = routing.Coordinate{Lat: 18.9220, Lon: 72.8347}
)

type stubRouting struct {
	mu   sync.Mutex
	alts *routing.Alternatives
	err  error
	reqs []routing.AlternativesRequest

	// latency is simulated by advancing clock during the call.
	clock   *clockwork.FakeClock
	latency time.Duration
}

func (s *stubRouting) GetAlternativeRoutes(_ context.Context, req routing.AlternativesRequest) (*routing.Alternatives, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.clock != nil {
		s.clock.Advance(s.latency)
	}
	return s.alts, s.err
}

type recordedRequest struct {
	provider  string
	operation string
	duration  time.Duration
	err       error
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *recordingMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{provider, operation, duration, err})
}

func (s *stubRouting) Name() string { return "stub" }

type stubWeather struct {
	mu     sync.Mutex
	sample weather.Sample
	points [][2]float64
}

func (w *stubWeather) Get(_ context.Context, lat, lon float64, _ weather.Fetcher) weather.Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, [2]float64{lat, lon})
	return w.sample
}

type nopFetcher struct{}

func (nopFetcher) FetchWeather(context.Context, float64, float64) (*weather.Reading, error) {
	return nil, errors.New("unused")
}
func (nopFetcher) Name() string { return "nop" }

func straight(points int) []polyline.Coordinate {
	line := make([]polyline.Coordinate, points)
	for i := range line {
		f := float64(i) / float64(points-1)
		line[i] = polyline.Coordinate{
			Lat: origin.Lat + f*(dest.Lat-origin.Lat),
			Lon: origin.Lon + f*(dest.Lon-origin.Lon),
		}
	}
	return line
}

type fixture struct {
	store   *hazard.Store
	routing *stubRouting
	weather *stubWeather
	clock   *clockwork.FakeClock
}

func newFixture(routes ...routing.Route) *fixture {
	clock := clockwork.NewFakeClockAt(morning)
	return &fixture{
		store:   hazard.NewStore(hazard.StoreConfig{Clock: clock, Logger: zerolog.Nop()}),
		routing: &stubRouting{alts: &routing.Alternatives{Routes: routes, Provider: "stub"}},
		weather: &stubWeather{sample: weather.FallbackSample(morning)},
		clock:   clock,
	}
}

func (f *fixture) service(engine scoring.Engine, withWeather bool) *safety.Service {
	cfg := safety.ServiceConfig{
		Routing: f.routing,
		Hazards: f.store,
		Engine:  engine,
		Clock:   f.clock,
		Logger:  zerolog.Nop(),
	}
	if withWeather {
		cfg.Weather = f.weather
		cfg.Fetcher = nopFetcher{}
	}
	return safety.NewService(cfg)
}

func request() safety.Request {
	return safety.Request{Origin: origin, Destination: dest, Vehicle: scoring.VehicleCar, TimeOfDay: scoring.Day}
}

func TestScoreRoutes_BaselineScenario(t *testing.T) {
	f := newFixture(routing.Route{Geometry: straight(40), DistanceMeters: 18000, DurationSeconds: 1830})

	resp, err := f.service(scoring.Engine{}, true).ScoreRoutes(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Routes, 1)

	c := resp.Routes[0]
	assert.Equal(t, scoring.Breakdown{DistancePenalty: 36, FinalScore: 64}, c.Breakdown)
	assert.Equal(t, 18.0, c.DistanceKm)
	assert.Equal(t, 31.0, c.TravelTimeMin)
	assert.NotEmpty(t, c.ID)
	require.Len(t, c.Polyline, 40)
	assert.Equal(t, [2]float64{origin.Lon, origin.Lat}, c.Polyline[0])
	assert.True(t, c.Weather.Degraded)

	assert.Equal(t, scoring.ModeToggle, resp.Mode)
	assert.Equal(t, morning, resp.GeneratedAt)
	assert.Equal(t, routing.ProfileCar, f.routing.reqs[0].Profile)
	assert.Equal(t, 2, f.routing.reqs[0].MaxAlternatives)
}

func TestScoreRoutes_HazardStateApplies(t *testing.T) {
	f := newFixture(routing.Route{Geometry: straight(40), DistanceMeters: 18000})
	_, err := f.store.Apply(hazard.SetCrowdPenalty{Value: 20})
	require.NoError(t, err)

	resp, err := f.service(scoring.Engine{}, false).ScoreRoutes(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 20.0, resp.Routes[0].Breakdown.CrowdPenalty)
	assert.Equal(t, 44.0, resp.Routes[0].Breakdown.FinalScore)
	assert.Equal(t, 20.0, resp.Hazard.GlobalCrowdPenalty)
}

func TestScoreRoutes_RealWeatherAtRouteMidpoint(t *testing.T) {
	f := newFixture(
		routing.Route{Geometry: straight(10), DistanceMeters: 18000},
		routing.Route{Geometry: straight(3), DistanceMeters: 20000},
	)
	f.weather.sample = weather.Sample{Penalty: 25, Condition: "rain"}

	resp, err := f.service(scoring.Engine{}, true).ScoreRoutes(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Routes, 2)

	assert.Equal(t, 25.0, resp.Routes[0].Breakdown.WeatherPenalty)
	assert.Equal(t, 39.0, resp.Routes[0].Breakdown.FinalScore)
	assert.Equal(t, 35.0, resp.Routes[1].Breakdown.FinalScore, "candidates keep provider order")

	require.Len(t, f.weather.points, 2)
	for _, p := range f.weather.points {
		assert.InDelta(t, (origin.Lat+dest.Lat)/2, p[0], 1e-3)
		assert.InDelta(t, (origin.Lon+dest.Lon)/2, p[1], 1e-3)
	}
}

func TestScoreRoutes_MissingDistanceFallsBackToGeometry(t *testing.T) {
	f := newFixture(routing.Route{Geometry: straight(5)})

	resp, err := f.service(scoring.Engine{}, false).ScoreRoutes(context.Background(), request())
	require.NoError(t, err)

	want := polyline.Length(straight(5)) / 1000
	assert.InDelta(t, want, resp.Routes[0].DistanceKm, 0.05)
	assert.Greater(t, resp.Routes[0].DistanceKm, 10.0)
}

func TestScoreRoutes_NoCandidates(t *testing.T) {
	f := newFixture()

	_, err := f.service(scoring.Engine{}, false).ScoreRoutes(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, routing.ErrNoRouteFound)
}

func TestScoreRoutes_RoutingErrorSurfaces(t *testing.T) {
	f := newFixture()
	f.routing.err = &routing.Error{Provider: "stub", Code: "SERVER_503", Err: routing.ErrProviderUnavailable}

	_, err := f.service(scoring.Engine{}, true).ScoreRoutes(context.Background(), request())
	assert.ErrorIs(t, err, routing.ErrProviderUnavailable)
	assert.Empty(t, f.weather.points, "weather is not fetched without routes")
}

func TestScoreRoutes_RecordsRoutingLatencyFromClock(t *testing.T) {
	f := newFixture(routing.Route{Geometry: straight(10), DistanceMeters: 18000, DurationSeconds: 1800})
	f.routing.clock = f.clock
	f.routing.latency = 750 * time.Millisecond
	metrics := &recordingMetrics{}

	svc := safety.NewService(safety.ServiceConfig{
		Routing: f.routing,
		Hazards: f.store,
		Metrics: metrics,
		Clock:   f.clock,
		Logger:  zerolog.Nop(),
	})

	_, err := svc.ScoreRoutes(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, metrics.requests, 1)
	got := metrics.requests[0]
	assert.Equal(t, "stub", got.provider)
	assert.Equal(t, "alternatives", got.operation)
	assert.Equal(t, 750*time.Millisecond, got.duration)
	assert.NoError(t, got.err)
}

func TestScoreRoutes_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*safety.Request)
	}{
		{"bad origin", func(r *safety.Request) { r.Origin.Lat = 120 }},
		{"bad destination", func(r *safety.Request) { r.Destination.Lon = -190 }},
		{"unknown vehicle", func(r *safety.Request) { r.Vehicle = "hovercraft" }},
		{"unknown time of day", func(r *safety.Request) { r.TimeOfDay = "dusk" }},
		{"density out of range", func(r *safety.Request) { d := 1.5; r.CrowdDensity = &d }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(routing.Route{Geometry: straight(2), DistanceMeters: 1000})
			req := request()
			tt.mutate(&req)

			_, err := f.service(scoring.Engine{}, false).ScoreRoutes(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, safety.ErrInvalidRequest)
			assert.True(t, safety.IsValidation(err))
			assert.Empty(t, f.routing.reqs)
		})
	}
}

func TestScoreRoutes_DerivesTimeOfDayFromClock(t *testing.T) {
	f := newFixture(routing.Route{Geometry: straight(2), DistanceMeters: 10000})
	f.clock.Advance(13 * time.Hour) // 22:00

	req := request()
	req.TimeOfDay = ""
	resp, err := f.service(scoring.Engine{}, false).ScoreRoutes(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, scoring.Night, resp.TimeOfDay)
	assert.Equal(t, 15.0, resp.Routes[0].Breakdown.DarknessPenalty)
}

func TestScoreRoutes_PedestrianProfileAtNight(t *testing.T) {
	route := routing.Route{Geometry: straight(2), DistanceMeters: 4000}
	engine := scoring.Engine{Mode: scoring.ModeProfile}

	score := func(v scoring.Vehicle) float64 {
		f := newFixture(route)
		req := request()
		req.Vehicle = v
		req.TimeOfDay = scoring.Night
		resp, err := f.service(engine, false).ScoreRoutes(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, safety.ProfileFor(v), f.routing.reqs[0].Profile)
		return resp.Routes[0].Breakdown.FinalScore
	}

	assert.Less(t, score(scoring.VehiclePedestrian), score(scoring.VehicleCar))
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, routing.ProfileCar, safety.ProfileFor(scoring.VehicleCar))
	assert.Equal(t, routing.ProfileTruck, safety.ProfileFor(scoring.VehicleTruck))
	assert.Equal(t, routing.ProfileBike, safety.ProfileFor(scoring.VehicleBike))
	assert.Equal(t, routing.ProfilePedestrian, safety.ProfileFor(scoring.VehiclePedestrian))
}

func TestTimeOfDayAt(t *testing.T) {
	at := func(h int) scoring.TimeOfDay {
		return safety.TimeOfDayAt(time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC))
	}
	assert.Equal(t, scoring.Night, at(5))
	assert.Equal(t, scoring.Day, at(6))
	assert.Equal(t, scoring.Day, at(19))
	assert.Equal(t, scoring.Night, at(20))
}
