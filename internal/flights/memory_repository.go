package flights

import (
	"context"
	"sync"
)

// InMemoryRepository keeps records in a slice behind a mutex. It backs
// worker tests; deployments store flights in PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []Record
	seen    map[string]struct{}
}

// NewInMemoryRepository creates a new in-memory flight record repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		seen: make(map[string]struct{}),
	}
}

// List retrieves flight records matching the given options.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if opts.Opera != "" && rec.Opera != opts.Opera {
			continue
		}
		if opts.Mes != 0 && rec.Mes != opts.Mes {
			continue
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}

	return out, nil
}

// Insert stores the given records, skipping duplicates.
func (r *InMemoryRepository) Insert(_ context.Context, records []Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := 0
	for _, rec := range records {
		key := rec.Opera + "|" + rec.FlightNumber + "|" + rec.ScheduledAt
		if _, ok := r.seen[key]; ok {
			continue
		}
		r.seen[key] = struct{}{}
		r.records = append(r.records, rec)
		stored++
	}

	return stored, nil
}

// Len returns the number of stored records.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
