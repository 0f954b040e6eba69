// Package routing fetches alternative routes between two points from an external provider.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/saferoute/saferoute/pkg/polyline"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the provider is unreachable, misconfigured or its circuit is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates coordinates are out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider computes alternative routes.
type Provider interface {
	// GetAlternativeRoutes returns the provider's route and its alternatives, best first.
	GetAlternativeRoutes(ctx context.Context, req AlternativesRequest) (*Alternatives, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Profile is a provider travel mode.
type Profile string

const (
	ProfileCar        Profile = "driving-car"
	ProfileTruck      Profile = "driving-hgv"
	ProfileBike       Profile = "cycling-regular"
	ProfilePedestrian Profile = "foot-walking"
)

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate is finite and in range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinates, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}

// AlternativesRequest asks for routes between two points.
type AlternativesRequest struct {
	Origin          Coordinate
	Destination     Coordinate
	Profile         Profile
	MaxAlternatives int // alternatives besides the primary route (default: 2)
}

// Alternatives is the provider's answer.
type Alternatives struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is one candidate route.
type Route struct {
	Geometry        []polyline.Coordinate
	DistanceMeters  float64 // 0 when the provider omitted it
	DurationSeconds float64
	Summary         string
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return e.Code != CodeMisconfigured &&
		(errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded))
}

// CodeMisconfigured marks provider errors caused by local configuration, such as a missing key.
const CodeMisconfigured = "MISCONFIGURED"
