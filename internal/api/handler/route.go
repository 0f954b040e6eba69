package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/internal/scoring"
)

// RouteScorer scores route alternatives between two points.
type RouteScorer interface {
	ScoreRoutes(ctx context.Context, req safety.Request) (*safety.Response, error)
}

// RouteHandler handles route scoring endpoints.
type RouteHandler struct {
	scorer RouteScorer
	log    zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(scorer RouteScorer, log zerolog.Logger) *RouteHandler {
	return &RouteHandler{scorer: scorer, log: log}
}

// ScoreRoutes handles POST /v1/routes:score - scored route alternatives.
func (h *RouteHandler) ScoreRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.RouteScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, r, "origin and destination must be [lng, lat] pairs", fieldErrors(err))
		return
	}

	req := safety.Request{
		Origin:       routing.Coordinate{Lat: input.Origin.Lat(), Lon: input.Origin.Lng()},
		Destination:  routing.Coordinate{Lat: input.Destination.Lat(), Lon: input.Destination.Lng()},
		Vehicle:      scoring.Vehicle(input.VehicleType),
		TimeOfDay:    scoring.TimeOfDay(input.TimeOfDay),
		CrowdDensity: input.CrowdDensity,
	}
	if t := input.Toggles; t != nil {
		req.Toggles = scoring.Toggles{Storm: t.Storm, Crowd: t.Crowd, Construction: t.Construction}
	}

	resp, err := h.scorer.ScoreRoutes(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	out := models.RouteScoreResponse{
		GeneratedAt: models.Timestamp(resp.GeneratedAt),
		Mode:        string(resp.Mode),
		VehicleType: string(resp.Vehicle),
		TimeOfDay:   string(resp.TimeOfDay),
		Provider:    resp.Provider,
		Hazard:      HazardState(resp.Hazard),
		Routes:      make([]models.ScoredRoute, len(resp.Routes)),
	}
	for i, c := range resp.Routes {
		out.Routes[i] = models.ScoredRoute{
			ID:            c.ID,
			Polyline:      c.Polyline,
			DistanceKm:    c.DistanceKm,
			TravelTimeMin: c.TravelTimeMin,
			Summary:       c.Summary,
			SafetyScore:   c.Breakdown.FinalScore,
			Breakdown:     c.Breakdown,
			Weather:       c.Weather,
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, r, http.StatusOK, out)
}
