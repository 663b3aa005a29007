// Package worker provides background job processing for DelayCast.
package worker

import (
	"time"
)

// Window is an inclusive range of scheduled departure dates.
type Window struct {
	From time.Time
	To   time.Time
}

// Chunks splits the window into consecutive sub-windows of at most
// days calendar days each.
func (w Window) Chunks(days int) []Window {
	if days <= 0 {
		return []Window{w}
	}

	var chunks []Window
	from := w.From
	for !from.After(w.To) {
		to := from.AddDate(0, 0, days-1)
		if to.After(w.To) {
			to = w.To
		}
		chunks = append(chunks, Window{From: from, To: to})
		from = to.AddDate(0, 0, 1)
	}
	return chunks
}

// IngestConfig holds configuration for the ingestion job.
type IngestConfig struct {
	// WindowDays is the trailing number of days ingested when a job
	// message carries no explicit window.
	// Default: 2
	WindowDays int

	// ChunkDays caps the number of days requested from the feed in a
	// single pass.
	// Default: 7
	ChunkDays int

	// Concurrency is the number of chunks ingested concurrently.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each chunk.
	// Default: 2 minutes
	Timeout time.Duration
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		WindowDays:  2,
		ChunkDays:   7,
		Concurrency: 3,
		Timeout:     2 * time.Minute,
	}
}

// TrailingWindow returns the WindowDays-day window ending yesterday in
// UTC. Same-day operations are left for the next run, after the feed
// has settled.
func (c IngestConfig) TrailingWindow(now time.Time) Window {
	day := now.UTC().Truncate(24 * time.Hour)
	to := day.AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -(c.WindowDays - 1))
	return Window{From: from, To: to}
}
