package flights

import "context"

// ListOptions contains options for listing flight records.
type ListOptions struct {
	// Limit caps the number of records returned. Zero means no limit.
	Limit int

	// Opera filters by operating carrier when non-empty.
	Opera string

	// Mes filters by scheduled month when non-zero.
	Mes int
}

// Source provides read access to flight records. Training and evaluation
// only need this side of the store.
type Source interface {
	// List retrieves flight records matching the given options.
	List(ctx context.Context, opts ListOptions) ([]Record, error)
}

// Repository defines the interface for flight record persistence.
type Repository interface {
	Source

	// Insert stores the given records, skipping duplicates. It returns the
	// number of records actually stored.
	Insert(ctx context.Context, records []Record) (int, error)
}
