// Package main provides the entrypoint for the SafeRoute API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/saferoute/internal/api"
	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/broadcast"
	"github.com/saferoute/saferoute/internal/config"
	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/ingest"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/routing/openrouteservice"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/internal/scoring"
	"github.com/saferoute/saferoute/internal/telemetry"
	"github.com/saferoute/saferoute/internal/weather"
	"github.com/saferoute/saferoute/internal/weather/openmeteo"
	"github.com/saferoute/saferoute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// eventSource is a background consumer of hazard events.
type eventSource interface {
	Run(ctx context.Context) error
	Close() error
}

func main() {
	const serviceName = "saferoute-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Level())
	if !cfg.IsProduction() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting SafeRoute API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Setup(ctx, cfg.Telemetry.Enabled, telemetry.OptionsFrom(cfg, serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Float64("sample_ratio", cfg.Telemetry.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	providerMetrics, err := middleware.NewProviderMetrics(serviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	broadcastMetrics, err := broadcast.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize broadcast metrics")
	}

	// Hazard state, observer fan-out and event ingestion
	store := hazard.NewStore(hazard.StoreConfig{Logger: log})
	hub := broadcast.NewHub(broadcast.HubConfig{
		Buffer:   cfg.Broadcast.Buffer,
		Snapshot: func() any { return handler.HazardState(store.Read()) },
		Metrics:  broadcastMetrics,
		Logger:   log,
	})
	events := ingest.NewService(ingest.ServiceConfig{Store: store, Publisher: hub, Logger: log})

	// Upstream providers
	registry := resilience.NewRegistry()

	weatherClientCfg := resilience.DefaultClientConfig(openmeteo.ProviderName)
	weatherClientCfg.Timeout = cfg.Weather.Timeout
	weatherClientCfg.Registry = registry
	weatherFetcher := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    cfg.Weather.BaseURL,
		HTTPClient: resilience.NewClient(weatherClientCfg),
		Logger:     log,
	})
	weatherCache := weather.NewCache(weather.CacheConfig{
		Logger:          log,
		TTL:             cfg.Weather.CacheTTL,
		FetchTimeout:    cfg.Weather.Timeout,
		StaleIfErrorTTL: cfg.Weather.StaleIfErrorTTL,
		Metrics:         providerMetrics,
	})

	if cfg.Routing.APIKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - route scoring will report the provider as misconfigured")
	}
	routes := routing.NewService(routing.ServiceConfig{
		Provider: openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.Routing.APIKey,
			BaseURL:  cfg.Routing.BaseURL,
			Timeout:  cfg.Routing.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Logger:   log,
		CacheTTL: cfg.Routing.CacheTTL,
		Timeout:  cfg.Routing.Timeout,
	})

	// Scoring
	mode, err := scoring.ParseMode(cfg.Scoring.Mode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scoring mode")
	}
	convention, err := scoring.ParseCrowdConvention(cfg.Scoring.CrowdConvention)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid crowd convention")
	}
	scorer := safety.NewService(safety.ServiceConfig{
		Routing:         routes,
		Hazards:         store,
		Weather:         weatherCache,
		Fetcher:         weatherFetcher,
		Engine:          scoring.Engine{Mode: mode, Crowd: convention},
		MaxAlternatives: cfg.Routing.MaxAlternatives,
		Concurrency:     cfg.Scoring.Concurrency,
		Metrics:         providerMetrics,
		Logger:          log,
	})
	log.Info().
		Str("mode", string(mode)).
		Str("crowd_convention", string(convention)).
		Msg("scoring engine configured")

	g, gctx := errgroup.WithContext(ctx)

	source, err := newEventSource(gctx, cfg, events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create hazard event source")
	}
	if source != nil {
		defer func() {
			if closeErr := source.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close hazard event source")
			}
		}()
		g.Go(func() error {
			if err := source.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	opsCfg := handler.OpsConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Providers:         registry,
		RoutingConfigured: cfg.Routing.APIKey != "",
		RoutingProvider:   openrouteservice.ProviderName,
		WeatherCache:      weatherCache,
		RouteCache:        routes,
		Observers:         hub,
	}

	if cfg.Weather.PrewarmInterval > 0 {
		prewarmCfg := worker.DefaultPrewarmConfig()
		prewarmCfg.Interval = cfg.Weather.PrewarmInterval
		prewarm := worker.NewPrewarmJob(worker.PrewarmJobConfig{
			Config:  prewarmCfg,
			Logger:  log,
			Cache:   weatherCache,
			Fetcher: weatherFetcher,
		})
		opsCfg.Prewarm = prewarm
		g.Go(func() error {
			prewarm.Start(gctx)
			return nil
		})
	}

	if cfg.Broadcast.VehicleInterval > 0 {
		sim := broadcast.NewVehicleSimulator(hub, broadcast.SimulatorConfig{
			Interval: cfg.Broadcast.VehicleInterval,
			Logger:   log,
		})
		g.Go(func() error {
			if err := sim.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.RequireTLS,
		Ops:         opsCfg,
		Hazards:     store,
		Events:      events,
		Scorer:      scorer,
		Subscribe:   broadcast.WebSocketHandler(hub, log),
		Stream:      broadcast.EventStreamHandler(hub, log),
	})

	// WriteTimeout stays zero so websocket and event-stream connections are
	// not cut; per-request bounds come from the provider timeouts.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		// Observers are closed first so long-lived connections end before Shutdown waits on them.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}

	log.Info().Msg("server stopped")
}

// newEventSource builds the configured background hazard event consumer.
// It returns nil when events only arrive over HTTP.
func newEventSource(ctx context.Context, cfg *config.Config, app ingest.Applier, log zerolog.Logger) (eventSource, error) {
	switch cfg.Events.Source {
	case config.EventSourcePubSub:
		return ingest.NewPubSubSource(ctx, ingest.PubSubConfig{
			ProjectID:        cfg.Events.PubSubProject,
			SubscriptionName: cfg.Events.PubSubSubscription,
			Applier:          app,
			Logger:           log,
		})
	case config.EventSourceKafka:
		return ingest.NewKafkaSource(ingest.KafkaConfig{
			Brokers: cfg.Events.KafkaBrokers,
			Topic:   cfg.Events.KafkaTopic,
			GroupID: cfg.Events.KafkaGroupID,
			Applier: app,
			Logger:  log,
		}), nil
	default:
		return nil, nil
	}
}
