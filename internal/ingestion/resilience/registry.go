package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FeedHealth is a point-in-time snapshot of one feed's state, as shown
// by the worker health endpoint.
type FeedHealth struct {
	// Name is the feed identifier.
	Name string

	// CircuitState is the breaker state at snapshot time.
	CircuitState gobreaker.State

	// Counts are the breaker counters at snapshot time.
	Counts gobreaker.Counts

	// LastSuccessAt and LastFailureAt record the most recent request
	// outcomes. Nil until the first request of that kind.
	LastSuccessAt *time.Time
	LastFailureAt *time.Time

	// LastError is the message of the most recent failure.
	LastError string
}

// IsHealthy reports a closed breaker: requests flow normally.
func (h *FeedHealth) IsHealthy() bool { return h.CircuitState == gobreaker.StateClosed }

// IsDegraded reports a half-open breaker: probe traffic only.
func (h *FeedHealth) IsDegraded() bool { return h.CircuitState == gobreaker.StateHalfOpen }

// IsUnhealthy reports an open breaker: requests are rejected.
func (h *FeedHealth) IsUnhealthy() bool { return h.CircuitState == gobreaker.StateOpen }

// Registry tracks the feed clients a worker talks to and the outcomes
// of their most recent requests. Clients register themselves when
// created with a registry in their config.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*feedEntry
}

type feedEntry struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

func (e *feedEntry) snapshot(name string) *FeedHealth {
	return &FeedHealth{
		Name:          name,
		CircuitState:  e.client.CircuitBreakerState(),
		Counts:        e.client.CircuitBreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]*feedEntry)}
}

// Register adds a feed client under the given name. Registering the
// same name again replaces the previous entry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[name] = &feedEntry{client: client}
}

// RecordSuccess notes a successful request for the named feed. Unknown
// names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.feeds[name]; ok {
		now := time.Now()
		entry.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed request for the named feed. Unknown
// names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.feeds[name]
	if !ok {
		return
	}
	now := time.Now()
	entry.lastFailureAt = &now
	if err != nil {
		entry.lastError = err.Error()
	}
}

// GetHealth snapshots one feed, or returns nil for unknown names.
func (r *Registry) GetHealth(name string) *FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.feeds[name]
	if !ok {
		return nil
	}
	return entry.snapshot(name)
}

// GetAllHealth snapshots every registered feed.
func (r *Registry) GetAllHealth() []*FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*FeedHealth, 0, len(r.feeds))
	for name, entry := range r.feeds {
		all = append(all, entry.snapshot(name))
	}
	return all
}
