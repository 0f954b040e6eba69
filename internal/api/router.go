// Package api provides the HTTP API for SafeRoute.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/ingest"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Ops     handler.OpsConfig
	Hazards handler.HazardReader
	Events  ingest.Applier
	Scorer  handler.RouteScorer

	// Subscribe and Stream serve the observer channel over websocket and
	// server-sent events. Either may be nil.
	Subscribe http.HandlerFunc
	Stream    http.HandlerFunc
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "saferoute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a load balancer
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Ops)
	hazardHandler := handler.NewHazardHandler(cfg.Hazards, cfg.Events, cfg.Logger)
	routeHandler := handler.NewRouteHandler(cfg.Scorer, cfg.Logger)

	controlRateLimit := middleware.RateLimitByClient(middleware.ControlRateLimit)  // 20 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/hazards", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", hazardHandler.GetHazards)
			r.With(standardRateLimit).Get("/weather", hazardHandler.GetWeather)
			r.With(standardRateLimit).Get("/crowd", hazardHandler.GetCrowd)

			r.Route("/events", func(r chi.Router) {
				r.Use(middleware.RequireJSON)
				r.With(standardRateLimit).Get("/", hazardHandler.ListEvents)
				r.With(controlRateLimit).Post("/", hazardHandler.ApplyEvent)
			})

			// Long-lived observer channels
			if cfg.Subscribe != nil {
				r.Get("/subscribe", cfg.Subscribe)
			}
			if cfg.Stream != nil {
				r.Get("/stream", cfg.Stream)
			}
		})

		// Route scoring calls upstream providers, strict rate limiting
		r.With(expensiveRateLimit, middleware.RequireJSON).Post("/routes:score", routeHandler.ScoreRoutes)
	})

	return r
}
