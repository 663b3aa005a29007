package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen reports that the feed's circuit breaker rejected the
// request without sending it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusError marks a 5xx reply from the feed. Returning it as an error
// lets the breaker and the retry loop treat server failures the same
// way as transport failures.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig holds configuration for a resilient feed client.
type ClientConfig struct {
	// Name identifies the feed in breaker state and health reports.
	Name string

	// Timeout bounds each individual HTTP attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries is how many times a failed request is retried. Default 3.
	MaxRetries uint64

	// InitialInterval is the first backoff delay. Default 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay. Default 5s.
	MaxInterval time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig when set.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the outcome of every request so the
	// worker health endpoint can report feed state.
	Registry *Registry
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return cfg
}

// DefaultClientConfig returns the standard client settings for a feed.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	cfg := ClientConfig{Name: name, CircuitBreaker: &cbConfig}
	return cfg.withDefaults()
}

// Client executes HTTP requests against an upstream flight data feed
// with retries and circuit breaking. Transient failures are retried
// with exponential backoff; repeated failures open the breaker so a
// dead feed is left alone while it recovers.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	config     ClientConfig
}

// NewClient creates a feed client and, when a registry is configured,
// registers it for health tracking.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewCircuitBreaker[*http.Response](cbConfig),
		registry:   cfg.Registry,
		config:     cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, client)
	}
	return client
}

// Name returns the feed name this client was configured with.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes the request with retries and circuit breaking. It returns
// ErrCircuitOpen without sending anything when the breaker is open. A
// 5xx response that survives every retry is returned to the caller
// rather than swallowed, since its body may carry a usable error
// payload.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do with an explicit context governing retries.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var last *http.Response

	attempt := func() error {
		resp, err := c.send(ctx, req)
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			if resp != nil {
				last = resp
			}
			return err
		}
		last = resp
		return nil
	}

	if err := backoff.Retry(attempt, c.newBackOff(ctx)); err != nil {
		c.recordFailure(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return last, nil
}

// send performs a single attempt through the breaker. A 5xx reply comes
// back as both the response and a StatusError, so the breaker counts it
// as a failure while the body stays readable.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // response ownership passes to the caller
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// newBackOff builds the per-request retry schedule. MaxElapsedTime is
// left unbounded, the attempt count is the only retry limit.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err)
	}
}

// CircuitBreakerState exposes the breaker state for health reporting.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts exposes the breaker counters for health reporting.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
