package models

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 error response, served as application/problem+json.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is the request path the problem occurred on.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request ID, echoed in X-Request-Id.
	TraceID string `json:"traceId"`

	// Errors contains structured field validation errors.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://api.saferoute.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation           = problemBase + "validation-error"
	ProblemTypeNotFound             = problemBase + "not-found"
	ProblemTypeUnsupportedMediaType = problemBase + "unsupported-media-type"
	ProblemTypeTLSRequired          = problemBase + "tls-required"
	ProblemTypeTooManyRequests      = problemBase + "too-many-requests"
	ProblemTypeInternal             = problemBase + "internal-error"
	ProblemTypeBadGateway           = problemBase + "upstream-error"
	ProblemTypeUnavailable          = problemBase + "service-unavailable"
)

// Kind pairs a problem type with its title and status.
type Kind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds served by the API.
var (
	KindValidation           = Kind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindTLSRequired          = Kind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	KindNotFound             = Kind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindUnsupportedMediaType = Kind{ProblemTypeUnsupportedMediaType, "Unsupported media type", http.StatusUnsupportedMediaType}
	KindTooManyRequests      = Kind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindInternal             = Kind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindBadGateway           = Kind{ProblemTypeBadGateway, "Upstream error", http.StatusBadGateway}
	KindUnavailable          = Kind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// NewProblem creates a problem of the given kind.
func NewProblem(kind Kind, traceID, detail string) *Problem {
	return &Problem{
		Type:    kind.Type,
		Title:   kind.Title,
		Status:  kind.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewBadRequest creates a 400 validation problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return NewProblem(KindValidation, traceID, detail).WithErrors(errors)
}

// WithInstance sets the request path.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
