// Package resilience hardens calls to upstream flight data feeds with
// retries, per-attempt timeouts and circuit breakers, and tracks feed
// health for the worker's status endpoint.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker defaults. A feed trips after tripMinRequests attempts in a
// window once half of them have failed, and stays open for
// defaultOpenTimeout before a probe request is let through.
const (
	tripMinRequests    = 5
	tripFailureRatio   = 0.5
	defaultOpenTimeout = 60 * time.Second
)

// CircuitBreakerConfig configures a feed circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// MaxRequests is how many probe requests the half-open state admits.
	// Default 1.
	MaxRequests uint32

	// Interval is the closed-state counter reset period. Zero keeps
	// counters for the life of the breaker.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	// Default 60s.
	Timeout time.Duration

	// ReadyToTrip decides when the breaker opens. Nil means
	// DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange, when set, observes every state transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the standard breaker settings for
// a feed.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     defaultOpenTimeout,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker once enough requests have been
// seen and at least half of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < tripMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= tripFailureRatio
}

// NewCircuitBreaker builds a typed gobreaker from the config.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	trip := cfg.ReadyToTrip
	if trip == nil {
		trip = DefaultReadyToTrip
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   trip,
		OnStateChange: cfg.OnStateChange,
	})
}
