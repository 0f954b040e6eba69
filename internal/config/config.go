// Package config loads process configuration from the environment.
//
// Values resolve from the OS environment first, then an optional .env file in
// the working directory. The result is validated once at startup and is
// immutable afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Hazard event sources.
const (
	EventSourceNone   = "none"
	EventSourcePubSub = "pubsub"
	EventSourceKafka  = "kafka"
)

// Config is the top-level configuration.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production"`
	Port        string `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	// RequireTLS rejects requests a load balancer forwarded over plain HTTP.
	RequireTLS bool `envconfig:"REQUIRE_TLS" default:"false"`

	Telemetry TelemetryConfig
	Routing   RoutingConfig
	Weather   WeatherConfig
	Scoring   ScoringConfig
	Broadcast BroadcastConfig
	Events    EventsConfig
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317" validate:"required"`
	SampleRatio  float64 `envconfig:"OTEL_TRACES_SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
}

// RoutingConfig configures the OpenRouteService client and its cache.
type RoutingConfig struct {
	// APIKey may be empty; routing then reports itself as misconfigured.
	APIKey          string        `envconfig:"ORS_API_KEY"`
	BaseURL         string        `envconfig:"ORS_BASE_URL" default:"https://api.openrouteservice.org" validate:"required,url"`
	Timeout         time.Duration `envconfig:"ROUTING_TIMEOUT" default:"10s" validate:"gt=0s"`
	MaxAlternatives int           `envconfig:"ROUTING_MAX_ALTERNATIVES" default:"2" validate:"min=0,max=2"`
	CacheTTL        time.Duration `envconfig:"ROUTING_CACHE_TTL" default:"5m" validate:"gte=0s"`
}

// WeatherConfig configures the Open-Meteo client, the weather cache and prewarming.
type WeatherConfig struct {
	BaseURL         string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url"`
	Timeout         time.Duration `envconfig:"WEATHER_TIMEOUT" default:"5s" validate:"gt=0s"`
	CacheTTL        time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m" validate:"gt=0s"`
	StaleIfErrorTTL time.Duration `envconfig:"WEATHER_STALE_IF_ERROR_TTL" default:"0s" validate:"gte=0s"`

	// PrewarmInterval > 0 refreshes the cache for known hot points in the background.
	PrewarmInterval time.Duration `envconfig:"WEATHER_PREWARM_INTERVAL" default:"0s" validate:"gte=0s"`
}

// ScoringConfig selects the scoring variant.
type ScoringConfig struct {
	Mode            string `envconfig:"SCORING_MODE" default:"toggle" validate:"oneof=toggle profile"`
	CrowdConvention string `envconfig:"SCORING_CROWD_CONVENTION" default:"flat_penalty" validate:"oneof=flat_penalty density_bonus"`
	Concurrency     int    `envconfig:"SCORING_CONCURRENCY" default:"4" validate:"min=1,max=32"`
}

// BroadcastConfig configures observer fan-out.
type BroadcastConfig struct {
	Buffer int `envconfig:"BROADCAST_BUFFER" default:"16" validate:"min=1"`

	// VehicleInterval > 0 enables simulated vehicle position pushes.
	VehicleInterval time.Duration `envconfig:"VEHICLE_SIMULATION_INTERVAL" default:"0s" validate:"gte=0s"`
}

// EventsConfig selects where hazard events are consumed from besides HTTP.
type EventsConfig struct {
	Source string `envconfig:"HAZARD_EVENT_SOURCE" default:"none" validate:"oneof=none pubsub kafka"`

	PubSubProject      string `envconfig:"PUBSUB_PROJECT_ID" validate:"required_if=Source pubsub"`
	PubSubSubscription string `envconfig:"PUBSUB_SUBSCRIPTION" validate:"required_if=Source pubsub"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" validate:"required_if=Source kafka,dive,hostname_port"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" validate:"required_if=Source kafka"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID" default:"saferoute-hazards"`
}

// Load reads an optional .env file, decodes the environment and validates the result.
func Load() (*Config, error) {
	// A missing .env is not an error; existing variables are never overridden.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// Level returns the parsed zerolog level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
