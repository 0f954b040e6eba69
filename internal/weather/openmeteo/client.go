// Package openmeteo fetches current conditions and the hourly forecast from Open-Meteo.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	hourLayout = "2006-01-02T15:04"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the forecast endpoint (optional).
	BaseURL string

	// HTTPClient is the resilient client to use. If nil, one is built with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client. It needs no API key.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchWeather fetches current conditions and today's hourly forecast for a point.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64) (*weather.Reading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,precipitation,weather_code,wind_speed_10m")
	q.Set("hourly", "temperature_2m,weather_code,visibility,precipitation")
	q.Set("forecast_days", "1")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", weather.ErrProviderUnavailable, resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	reading := c.toReading(&body)
	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("weather_code", reading.WeatherCode).
		Int("hours", len(reading.Hourly)).
		Msg("fetched weather")

	return reading, nil
}

func (c *Client) toReading(body *forecastResponse) *weather.Reading {
	reading := &weather.Reading{
		Temperature:     body.Current.Temperature,
		PrecipitationMm: body.Current.Precipitation,
		WindKmh:         body.Current.WindSpeed,
		WeatherCode:     body.Current.WeatherCode,
	}

	if len(body.Hourly.Visibility) > 0 && body.Hourly.Visibility[0] != nil {
		reading.VisibilityMeters = *body.Hourly.Visibility[0]
	}

	loc := time.FixedZone(body.Timezone, body.UTCOffsetSeconds)
	for i, raw := range body.Hourly.Time {
		t, err := time.ParseInLocation(hourLayout, raw, loc)
		if err != nil {
			c.logger.Warn().Err(err).Str("time", raw).Msg("skipping unparseable forecast hour")
			continue
		}

		h := weather.HourlyReading{Time: t}
		if i < len(body.Hourly.Temperature) {
			h.Temperature = body.Hourly.Temperature[i]
		}
		if i < len(body.Hourly.WeatherCode) {
			h.WeatherCode = body.Hourly.WeatherCode[i]
		}
		reading.Hourly = append(reading.Hourly, h)
	}

	return reading
}
