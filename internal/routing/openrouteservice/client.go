// Package openrouteservice is a client for the OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// maxTargetCount is the most routes ORS returns for one request.
	maxTargetCount = 3
	shareFactor    = 0.6
	weightFactor   = 1.4
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key. Without it every call fails as misconfigured.
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetAlternativeRoutes requests the primary route plus up to MaxAlternatives alternatives.
func (c *Client) GetAlternativeRoutes(ctx context.Context, req routing.AlternativesRequest) (*routing.Alternatives, error) {
	if c.apiKey == "" {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     routing.CodeMisconfigured,
			Message:  "routing provider API key is not configured",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	if err := req.Origin.Validate(); err != nil {
		return nil, &routing.Error{Provider: ProviderName, Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: err}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &routing.Error{Provider: ProviderName, Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: err}
	}

	maxAlts := req.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 2
	}

	orsReq := orsRequest{
		// ORS uses [lon, lat] order (GeoJSON)
		Coordinates: [][]float64{
			{req.Origin.Lon, req.Origin.Lat},
			{req.Destination.Lon, req.Destination.Lat},
		},
		AlternativeRoutes: &alternativeRoutesOpts{
			TargetCount:  min(maxAlts+1, maxTargetCount),
			ShareFactor:  shareFactor,
			WeightFactor: weightFactor,
		},
		Instructions: true,
		Geometry:     true,
		Units:        "m",
	}

	body, err := json.Marshal(orsReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, req.Profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", string(req.Profile)).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Msg("requesting alternatives")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  "routing provider returned an unreadable response",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}

	alts, err := c.toAlternatives(&orsResp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("route_count", len(alts.Routes)).Msg("received alternatives")
	return alts, nil
}

// errorFromResponse maps ORS error responses to domain errors.
func errorFromResponse(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	_ = json.Unmarshal(body, &orsErr)
	message := orsErr.Error.Message

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{
			Provider: ProviderName,
			Code:     routing.CodeMisconfigured,
			Message:  "routing provider rejected the API key",
			Err:      routing.ErrProviderUnavailable,
		}
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "routing provider rate limit exceeded",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusNotFound, orsErr.Error.Code == orsErrorCodeNotFound:
		if message == "" {
			message = "no route found between the given points"
		}
		return &routing.Error{Provider: ProviderName, Code: "NO_ROUTE", Message: message, Err: routing.ErrNoRouteFound}
	case statusCode == http.StatusBadRequest:
		return &routing.Error{Provider: ProviderName, Code: "BAD_REQUEST", Message: message, Err: routing.ErrInvalidCoordinates}
	case statusCode >= http.StatusInternalServerError:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

func (c *Client) toAlternatives(resp *orsResponse) (*routing.Alternatives, error) {
	routes := make([]routing.Route, 0, len(resp.Routes))

	for i := range resp.Routes {
		r := &resp.Routes[i]
		geometry, err := polyline.Decode(r.Geometry)
		if err != nil {
			return nil, &routing.Error{
				Provider: ProviderName,
				Code:     "MALFORMED_GEOMETRY",
				Message:  fmt.Sprintf("route %d has malformed geometry", i),
				Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
			}
		}

		routes = append(routes, routing.Route{
			Geometry:        geometry,
			DistanceMeters:  r.Summary.Distance,
			DurationSeconds: r.Summary.Duration,
			Summary:         summarize(r.Segments),
		})
	}

	return &routing.Alternatives{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

// summarize names the longest named step of the route.
func summarize(segments []routeSegment) string {
	var name string
	var longest float64
	for _, seg := range segments {
		for _, step := range seg.Steps {
			if step.Name != "" && step.Name != "-" && step.Distance > longest {
				name, longest = step.Name, step.Distance
			}
		}
	}
	if name == "" {
		return ""
	}
	return "via " + name
}
