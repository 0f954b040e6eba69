package models

// HazardState is the public view of the global hazard state.
type HazardState struct {
	Weather             WeatherState `json:"weather"`
	CrowdPenalty        float64      `json:"crowdPenalty"`
	ConstructionPenalty float64      `json:"constructionPenalty"`
	ConstructionActive  bool         `json:"constructionActive"`
	UpdatedAt           Timestamp    `json:"updatedAt"`
}

// WeatherState is the active weather condition and its window.
type WeatherState struct {
	Condition string    `json:"condition"`
	Intensity float64   `json:"intensity"`
	StartsAt  Timestamp `json:"startsAt"`
	EndsAt    Timestamp `json:"endsAt"`
}

// CrowdState summarises the global crowd modifier.
type CrowdState struct {
	Global  bool    `json:"global"`
	Penalty float64 `json:"penalty"`
	Density string  `json:"density"`
}

// HazardEventRequest is the request body for applying a hazard event.
type HazardEventRequest struct {
	Event  string `json:"event" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

// HazardEventResponse reports an applied hazard event.
type HazardEventResponse struct {
	Success bool        `json:"success"`
	Event   string      `json:"event"`
	Message string      `json:"message"`
	State   HazardState `json:"state"`
}

// HazardEventList lists the accepted event names.
type HazardEventList struct {
	Events []string `json:"events"`
}
