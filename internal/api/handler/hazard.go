package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/ingest"
)

// HazardReader returns the current hazard snapshot.
type HazardReader interface {
	Read() hazard.State
}

// HazardHandler serves the hazard state and accepts hazard events.
type HazardHandler struct {
	store  HazardReader
	ingest ingest.Applier
	log    zerolog.Logger
}

// NewHazardHandler creates a new HazardHandler.
func NewHazardHandler(store HazardReader, applier ingest.Applier, log zerolog.Logger) *HazardHandler {
	return &HazardHandler{
		store:  store,
		ingest: applier,
		log:    log,
	}
}

// GetHazards handles GET /v1/hazards - current global hazard state.
func (h *HazardHandler) GetHazards(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, HazardState(h.store.Read()))
}

// GetWeather handles GET /v1/hazards/weather - active weather condition and window.
func (h *HazardHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, HazardState(h.store.Read()).Weather)
}

// GetCrowd handles GET /v1/hazards/crowd - global crowd modifier.
func (h *HazardHandler) GetCrowd(w http.ResponseWriter, r *http.Request) {
	s := h.store.Read()
	density := "normal"
	if s.CrowdActive() {
		density = "high"
	}
	response.JSON(w, r, http.StatusOK, models.CrowdState{
		Global:  true,
		Penalty: s.GlobalCrowdPenalty,
		Density: density,
	})
}

// ListEvents handles GET /v1/hazards/events - accepted event names.
func (h *HazardHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.HazardEventList{Events: ingest.Events()})
}

// ApplyEvent handles POST /v1/hazards/events - apply a named hazard event.
func (h *HazardHandler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	var input models.HazardEventRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, r, "invalid hazard event", fieldErrors(err))
		return
	}

	result, err := h.ingest.Apply(r.Context(), ingest.Event{Name: input.Event, Active: input.Active})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.HazardEventResponse{
		Success: true,
		Event:   result.Event,
		Message: result.Message,
		State:   HazardState(result.State),
	})
}

// HazardState converts a store snapshot to its public representation.
func HazardState(s hazard.State) models.HazardState {
	return models.HazardState{
		Weather: models.WeatherState{
			Condition: string(s.WeatherCondition),
			Intensity: s.WeatherIntensity,
			StartsAt:  models.Timestamp(s.WeatherWindowStart),
			EndsAt:    models.Timestamp(s.WeatherWindowEnd),
		},
		CrowdPenalty:        s.GlobalCrowdPenalty,
		ConstructionPenalty: s.GlobalConstructionPenalty,
		ConstructionActive:  s.ConstructionActive(),
		UpdatedAt:           models.Timestamp(s.UpdatedAt),
	}
}
