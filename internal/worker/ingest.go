package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/ingestion"
)

// Ingester runs one ingestion pass over a window of scheduled dates.
// Satisfied by ingestion.Service.
type Ingester interface {
	Ingest(ctx context.Context, from, to time.Time) (*ingestion.Result, error)
}

// IngestJob splits a date window into chunks and feeds them through the
// ingestion service with bounded concurrency.
type IngestJob struct {
	config  IngestConfig
	service Ingester
	logger  zerolog.Logger
	metrics *IngestMetrics
}

// IngestMetrics accumulates totals across runs. The worker health
// endpoint reports a snapshot of these.
type IngestMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	SuccessfulChunks int64
	FailedChunks     int64
	RecordsFetched   int64
	RecordsStored    int64
	RecordsSkipped   int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// IngestJobConfig holds the dependencies for NewIngestJob.
type IngestJobConfig struct {
	Config  IngestConfig
	Service Ingester
	Logger  zerolog.Logger
}

// NewIngestJob builds a job, filling unset config fields from
// DefaultIngestConfig.
func NewIngestJob(cfg IngestJobConfig) *IngestJob {
	config := cfg.Config
	defaults := DefaultIngestConfig()
	if config.WindowDays <= 0 {
		config.WindowDays = defaults.WindowDays
	}
	if config.ChunkDays <= 0 {
		config.ChunkDays = defaults.ChunkDays
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &IngestJob{
		config:  config,
		service: cfg.Service,
		logger:  cfg.Logger,
		metrics: &IngestMetrics{},
	}
}

// IngestResult summarizes a single run.
type IngestResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Window      Window
	TotalChunks int
	Successful  int
	Failed      int

	Fetched int
	Stored  int
	Skipped int

	Errors []IngestError
}

// IngestError records a chunk that could not be ingested.
type IngestError struct {
	Window Window
	Error  string
}

// Run ingests the window chunk by chunk. Chunk failures are collected
// rather than aborting the run, so one bad stretch of feed data does
// not block the rest of the window.
func (j *IngestJob) Run(ctx context.Context, window Window) *IngestResult {
	started := time.Now()
	chunks := window.Chunks(j.config.ChunkDays)
	result := &IngestResult{
		StartTime:   started,
		Window:      window,
		TotalChunks: len(chunks),
	}

	j.logger.Info().
		Time("from", window.From).
		Time("to", window.To).
		Int("chunks", len(chunks)).
		Int("concurrency", j.config.Concurrency).
		Msg("ingest run starting")

	pending := make(chan Window, len(chunks))
	for _, c := range chunks {
		pending <- c
	}
	close(pending)

	outcomes := make(chan chunkResult, len(chunks))
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range pending {
				select {
				case <-ctx.Done():
					return
				default:
					outcomes <- j.ingestChunk(ctx, chunk)
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for oc := range outcomes {
		if oc.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, IngestError{
				Window: oc.window,
				Error:  oc.err.Error(),
			})
			continue
		}
		result.Successful++
		result.Fetched += oc.summary.Fetched
		result.Stored += oc.summary.Stored
		result.Skipped += oc.summary.Skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(started)
	j.record(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Msg("ingest run finished")

	return result
}

type chunkResult struct {
	window  Window
	summary *ingestion.Result
	err     error
}

func (j *IngestJob) ingestChunk(ctx context.Context, chunk Window) chunkResult {
	if j.service == nil {
		return chunkResult{window: chunk, err: errors.New("no ingestion service configured")}
	}

	chunkCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	summary, err := j.service.Ingest(chunkCtx, chunk.From, chunk.To)
	return chunkResult{window: chunk, summary: summary, err: err}
}

func (j *IngestJob) record(result *IngestResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulChunks += int64(result.Successful)
	j.metrics.FailedChunks += int64(result.Failed)
	j.metrics.RecordsFetched += int64(result.Fetched)
	j.metrics.RecordsStored += int64(result.Stored)
	j.metrics.RecordsSkipped += int64(result.Skipped)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the accumulated metrics.
func (j *IngestJob) GetMetrics() IngestMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return IngestMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulChunks: j.metrics.SuccessfulChunks,
		FailedChunks:     j.metrics.FailedChunks,
		RecordsFetched:   j.metrics.RecordsFetched,
		RecordsStored:    j.metrics.RecordsStored,
		RecordsSkipped:   j.metrics.RecordsSkipped,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// MetricsSnapshot renders the metrics as a map for the health endpoint.
func (j *IngestJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_chunks": m.SuccessfulChunks,
		"failed_chunks":     m.FailedChunks,
		"records_fetched":   m.RecordsFetched,
		"records_stored":    m.RecordsStored,
		"records_skipped":   m.RecordsSkipped,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
