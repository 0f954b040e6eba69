package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig configures a resilient HTTP client for one provider.
type ClientConfig struct {
	// Name identifies the provider.
	Name string

	// Timeout bounds each HTTP attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Negative disables retries.
	MaxRetries int

	// InitialInterval and MaxInterval bound the exponential backoff between attempts.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker configures the circuit breaker. Nil uses DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, when set, receives the client and its call outcomes for health reporting.
	Registry *Registry
}

// DefaultClientConfig returns defaults suitable for the routing and weather providers.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client executes HTTP requests through a circuit breaker with retry on transient failures.
// 5xx responses and transport errors are retried; 4xx responses are returned as-is.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	cfg        ClientConfig
}

// NewClient creates a resilient client and registers it when a Registry is configured.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		registry:   cfg.Registry,
		cfg:        cfg,
	}

	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the provider name the client was created for.
func (c *Client) Name() string {
	return c.name
}

// Do executes req, honouring req.Context() for cancellation between retries.
// The caller closes the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries))
	}

	var last *http.Response
	attempt := func() error {
		if last != nil {
			// Discard the previous 5xx response before retrying.
			_ = last.Body.Close()
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			last = resp
			return err
		}

		last = resp
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(policy, ctx))
	if err != nil && last == nil {
		c.recordFailure(err)
		return nil, err
	}

	if last.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(&ServerError{StatusCode: last.StatusCode})
	} else {
		c.recordSuccess()
	}
	return last, nil
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counters.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}

// ServerError is an upstream 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "upstream server error: " + http.StatusText(e.StatusCode)
}
