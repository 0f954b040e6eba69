package config_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.RequireTLS)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)

	assert.Empty(t, cfg.Routing.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 2, cfg.Routing.MaxAlternatives)

	assert.Equal(t, 10*time.Minute, cfg.Weather.CacheTTL)
	assert.Zero(t, cfg.Weather.StaleIfErrorTTL)
	assert.Zero(t, cfg.Weather.PrewarmInterval)

	assert.Equal(t, "toggle", cfg.Scoring.Mode)
	assert.Equal(t, "flat_penalty", cfg.Scoring.CrowdConvention)
	assert.Equal(t, 16, cfg.Broadcast.Buffer)
	assert.Zero(t, cfg.Broadcast.VehicleInterval)
	assert.Equal(t, config.EventSourceNone, cfg.Events.Source)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.1")
	t.Setenv("ORS_API_KEY", "ors-key")
	t.Setenv("WEATHER_STALE_IF_ERROR_TTL", "30m")
	t.Setenv("SCORING_MODE", "profile")
	t.Setenv("SCORING_CROWD_CONVENTION", "density_bonus")
	t.Setenv("VEHICLE_SIMULATION_INTERVAL", "2s")
	t.Setenv("HAZARD_EVENT_SOURCE", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "hazard-events")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.True(t, cfg.RequireTLS)
	assert.Equal(t, 0.1, cfg.Telemetry.SampleRatio)
	assert.Equal(t, "ors-key", cfg.Routing.APIKey)
	assert.Equal(t, 30*time.Minute, cfg.Weather.StaleIfErrorTTL)
	assert.Equal(t, "profile", cfg.Scoring.Mode)
	assert.Equal(t, "density_bonus", cfg.Scoring.CrowdConvention)
	assert.Equal(t, 2*time.Second, cfg.Broadcast.VehicleInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "saferoute-hazards", cfg.Events.KafkaGroupID)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown environment", map[string]string{"APP_ENV": "qa"}},
		{"unknown scoring mode", map[string]string{"SCORING_MODE": "fancy"}},
		{"unknown crowd convention", map[string]string{"SCORING_CROWD_CONVENTION": "vibes"}},
		{"zero broadcast buffer", map[string]string{"BROADCAST_BUFFER": "0"}},
		{"malformed duration", map[string]string{"WEATHER_CACHE_TTL": "soon"}},
		{"too many alternatives", map[string]string{"ROUTING_MAX_ALTERNATIVES": "5"}},
		{"pubsub without subscription", map[string]string{
			"HAZARD_EVENT_SOURCE": "pubsub",
			"PUBSUB_PROJECT_ID":   "saferoute",
		}},
		{"kafka without brokers", map[string]string{
			"HAZARD_EVENT_SOURCE": "kafka",
			"KAFKA_TOPIC":         "hazard-events",
		}},
		{"unknown event source", map[string]string{"HAZARD_EVENT_SOURCE": "mqtt"}},
		{"sample ratio above one", map[string]string{"OTEL_TRACES_SAMPLE_RATIO": "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
