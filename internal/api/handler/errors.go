// Package handler provides HTTP handlers for the SafeRoute API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/hazard"
	"github.com/saferoute/saferoute/internal/ingest"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
)

var validate = validator.New()

// fieldErrors converts validator errors into problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: "failed " + fe.Tag() + " validation",
			Code:    fe.Tag(),
		})
	}
	return out
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var rerr *routing.Error

	switch {
	case safety.IsValidation(err),
		errors.Is(err, hazard.ErrInvalidTransition),
		errors.Is(err, ingest.ErrUnknownEvent):
		response.BadRequest(w, r, err.Error(), nil)

	case errors.Is(err, routing.ErrNoRouteFound):
		response.NotFound(w, r, "no route found between the given points")

	case errors.Is(err, routing.ErrRateLimitExceeded):
		response.TooManyRequestsWithInfo(w, r, "routing provider quota exhausted", &response.RateLimitInfo{RetryAfter: 60})

	case errors.As(err, &rerr) && rerr.Code == routing.CodeMisconfigured:
		log.Error().Err(err).Msg("routing provider misconfigured")
		response.ServiceUnavailable(w, r, "routing provider is not configured")

	case errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("upstream unavailable")
		response.ServiceUnavailable(w, r, "routing provider unavailable, try again shortly")

	case errors.As(err, &rerr):
		log.Error().Err(err).Str("code", rerr.Code).Msg("routing provider error")
		response.BadGateway(w, r, "routing provider returned an unexpected error")

	default:
		log.Error().Err(err).Msg("unhandled error")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
