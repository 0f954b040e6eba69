package handler

import (
	"net/http"
	"time"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/broadcast"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/weather"
)

// Degradation flags reported by the status endpoint.
const (
	FlagRoutingMisconfigured = "ROUTING_MISCONFIGURED"
	FlagRoutingUnavailable   = "ROUTING_UNAVAILABLE"
	FlagWeatherFallback      = "WEATHER_FALLBACK"
)

// ProviderHealthSource reports upstream provider health.
type ProviderHealthSource interface {
	AllHealth() []resilience.ProviderHealth
}

// OpsConfig holds the dependencies reported by the ops endpoints. Every field
// except Version and BuildTime is optional.
type OpsConfig struct {
	Version   string
	BuildTime string

	Providers ProviderHealthSource

	// RoutingConfigured is false when no routing API key was supplied.
	RoutingConfigured bool
	RoutingProvider   string

	WeatherCache interface{ Stats() weather.CacheStats }
	RouteCache   interface{ CacheStats() routing.CacheStats }
	Observers    interface{ Stats() broadcast.Stats }
	Prewarm      interface{ MetricsSnapshot() map[string]any }
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// The process serves hazard state and scoring without upstreams, so missing
// providers degrade readiness but never fail it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	flags := h.degradationFlags(h.providerStatuses())

	status := models.HealthStatusOK
	if len(flags) > 0 {
		status = models.HealthStatusDegraded
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(h.now()),
	}
	if len(flags) > 0 {
		health.Details = map[string]any{"degradationFlags": flags}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	flags := h.degradationFlags(providers)

	status := models.HealthStatusOK
	if len(flags) > 0 {
		status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:                 status,
		Time:                   models.Timestamp(h.now()),
		Subsystems:             h.subsystems(),
		Providers:              providers,
		ActiveDegradationFlags: flags,
	})
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Providers.AllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:     p.Name,
			Status:       circuitStatus(p.State),
			CircuitState: p.State,
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func circuitStatus(state string) models.HealthStatus {
	switch state {
	case "closed":
		return models.HealthStatusOK
	case "half-open":
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

func (h *OpsHandler) degradationFlags(providers []models.ProviderStatus) []string {
	var flags []string
	if !h.cfg.RoutingConfigured {
		flags = append(flags, FlagRoutingMisconfigured)
	}

	for _, p := range providers {
		if p.Status == models.HealthStatusOK {
			continue
		}
		if p.Provider == h.cfg.RoutingProvider {
			flags = append(flags, FlagRoutingUnavailable)
		} else {
			flags = append(flags, FlagWeatherFallback)
		}
	}
	return flags
}

func (h *OpsHandler) subsystems() []models.SubsystemStatus {
	subs := []models.SubsystemStatus{{Name: "hazard-store", Status: models.HealthStatusOK}}

	if c := h.cfg.WeatherCache; c != nil {
		st := c.Stats()
		subs = append(subs, models.SubsystemStatus{
			Name:   "weather-cache",
			Status: models.HealthStatusOK,
			Metrics: map[string]any{
				"totalEntries": st.TotalEntries,
				"freshEntries": st.FreshEntries,
				"ttl":          st.TTL.String(),
			},
		})
	}

	if c := h.cfg.RouteCache; c != nil {
		st := c.CacheStats()
		subs = append(subs, models.SubsystemStatus{
			Name:   "route-cache",
			Status: models.HealthStatusOK,
			Metrics: map[string]any{
				"totalEntries": st.TotalEntries,
				"freshEntries": st.FreshEntries,
				"provider":     st.Provider,
			},
		})
	}

	if o := h.cfg.Observers; o != nil {
		st := o.Stats()
		subs = append(subs, models.SubsystemStatus{
			Name:   "broadcast",
			Status: models.HealthStatusOK,
			Metrics: map[string]any{
				"observers": st.Observers,
				"delivered": st.Delivered,
				"dropped":   st.Dropped,
			},
		})
	}

	if p := h.cfg.Prewarm; p != nil {
		subs = append(subs, models.SubsystemStatus{
			Name:    "weather-prewarm",
			Status:  models.HealthStatusOK,
			Metrics: p.MetricsSnapshot(),
		})
	}

	return subs
}
