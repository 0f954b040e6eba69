package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/saferoute/saferoute/internal/hazard"
)

// Source feeds hazard events from an external transport until ctx is cancelled.
type Source interface {
	Run(ctx context.Context) error
	Close() error
}

// decodeEvent parses a JSON event message.
func decodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if ev.Name == "" {
		return Event{}, fmt.Errorf("%w: missing event name", ErrUnknownEvent)
	}
	return ev, nil
}

// Permanent reports whether redelivering the message could never succeed.
func Permanent(err error) bool {
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, hazard.ErrInvalidTransition) ||
		errors.As(err, &syntax) ||
		errors.As(err, &typeErr)
}

// Handle decodes and applies one event message.
func Handle(ctx context.Context, app Applier, data []byte) (Result, error) {
	ev, err := decodeEvent(data)
	if err != nil {
		return Result{}, err
	}
	return app.Apply(ctx, ev)
}
