// Package ingestion collects historical flight operation records from the
// airline operations feed and stores them for training.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/flights"
)

// Feed provides flight operation records for a scheduled-date window.
// Satisfied by opsfeed.Client.
type Feed interface {
	FetchFlights(ctx context.Context, from, to time.Time) ([]flights.Record, error)
}

// Service fetches windows of flight operations and persists the usable
// records.
type Service struct {
	feed   Feed
	repo   flights.Repository
	logger zerolog.Logger
}

// NewService creates a new ingestion service.
func NewService(feed Feed, repo flights.Repository, logger zerolog.Logger) *Service {
	return &Service{
		feed:   feed,
		repo:   repo,
		logger: logger,
	}
}

// Result summarizes one ingestion pass.
type Result struct {
	// From and To bound the ingested window, inclusive.
	From time.Time
	To   time.Time

	// Fetched is the number of records delivered by the feed.
	Fetched int

	// Stored is the number of records newly persisted.
	Stored int

	// Skipped is the number of records dropped by validation.
	Skipped int

	// Duplicates is the number of valid records the store already held.
	Duplicates int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Ingest fetches the window from the feed, drops records that fail
// validation, and stores the remainder. Storage is idempotent, so
// overlapping windows are safe.
func (s *Service) Ingest(ctx context.Context, from, to time.Time) (*Result, error) {
	start := time.Now()

	records, err := s.feed.FetchFlights(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch flights: %w", err)
	}

	valid := make([]flights.Record, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.logger.Warn().
				Err(err).
				Str("opera", rec.Opera).
				Str("flight_number", rec.FlightNumber).
				Str("scheduled_at", rec.ScheduledAt).
				Msg("skipping invalid feed record")
			skipped++
			continue
		}
		valid = append(valid, rec)
	}

	stored := 0
	if len(valid) > 0 {
		stored, err = s.repo.Insert(ctx, valid)
		if err != nil {
			return nil, fmt.Errorf("store flights: %w", err)
		}
	}

	result := &Result{
		From:       from,
		To:         to,
		Fetched:    len(records),
		Stored:     stored,
		Skipped:    skipped,
		Duplicates: len(valid) - stored,
		Duration:   time.Since(start),
	}

	s.logger.Info().
		Time("from", from).
		Time("to", to).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Int("duplicates", result.Duplicates).
		Dur("duration", result.Duration).
		Msg("ingestion pass completed")

	return result, nil
}
