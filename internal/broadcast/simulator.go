package broadcast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Default simulator origin (Mumbai).
const (
	DefaultSimulationLat = 19.0760
	DefaultSimulationLng = 72.8777
)

// SimulatorConfig holds configuration for the vehicle position simulator.
type SimulatorConfig struct {
	Interval time.Duration
	Vehicles int     // default: 3
	Lat, Lng float64 // starting point; zero uses the default origin
	Seed     int64
	Clock    clockwork.Clock
	Logger   zerolog.Logger
}

// VehicleSimulator publishes random-walk vehicle positions on a fixed interval.
type VehicleSimulator struct {
	pub      Publisher
	interval time.Duration
	clock    clockwork.Clock
	rng      *rand.Rand
	vehicles []VehiclePosition
	logger   zerolog.Logger
}

// NewVehicleSimulator creates a simulator publishing to pub.
func NewVehicleSimulator(pub Publisher, cfg SimulatorConfig) *VehicleSimulator {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Vehicles <= 0 {
		cfg.Vehicles = 3
	}
	if cfg.Lat == 0 && cfg.Lng == 0 {
		cfg.Lat, cfg.Lng = DefaultSimulationLat, DefaultSimulationLng
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Seed == 0 {
		cfg.Seed = cfg.Clock.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // simulated positions
	vehicles := make([]VehiclePosition, cfg.Vehicles)
	for i := range vehicles {
		vehicles[i] = VehiclePosition{
			ID:      fmt.Sprintf("vehicle-%d", i+1),
			Lat:     cfg.Lat + (rng.Float64()-0.5)*0.02,
			Lng:     cfg.Lng + (rng.Float64()-0.5)*0.02,
			Heading: rng.Float64() * 360,
			SpeedKm: 20 + rng.Float64()*30,
		}
	}

	return &VehicleSimulator{
		pub:      pub,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		rng:      rng,
		vehicles: vehicles,
		logger:   cfg.Logger,
	}
}

// Run publishes positions until ctx is cancelled.
func (s *VehicleSimulator) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Int("vehicles", len(s.vehicles)).Msg("vehicle simulator started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			s.Step()
		}
	}
}

// Step advances every vehicle once and publishes the positions.
func (s *VehicleSimulator) Step() {
	hours := s.interval.Hours()
	positions := make([]VehiclePosition, len(s.vehicles))

	for i := range s.vehicles {
		v := &s.vehicles[i]
		v.Heading = math.Mod(v.Heading+(s.rng.Float64()-0.5)*30+360, 360)
		v.SpeedKm = math.Max(5, math.Min(60, v.SpeedKm+(s.rng.Float64()-0.5)*10))

		km := v.SpeedKm * hours
		rad := v.Heading * math.Pi / 180
		v.Lat += km * math.Cos(rad) / 111.32
		v.Lng += km * math.Sin(rad) / (111.32 * math.Cos(v.Lat*math.Pi/180))

		positions[i] = *v
	}

	s.pub.Publish(Message{Type: TypeVehicleUpdates, Payload: positions, Timestamp: s.clock.Now()})
}
