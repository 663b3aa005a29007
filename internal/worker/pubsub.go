package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types the worker accepts.
const (
	JobTypeOpsRefresh  = "ops_refresh"
	JobTypeHealthCheck = "health_check"
)

// windowLayout is the date format accepted in job messages.
const windowLayout = "2006-01-02"

// JobMessage is the payload of a worker job. From and To optionally
// bound the ingested window as inclusive YYYY-MM-DD dates; when absent
// the job falls back to its trailing window.
type JobMessage struct {
	JobType string `json:"job_type"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// PubSubConfig configures the subscription consumer.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	IngestJob        *IngestJob
	Logger           zerolog.Logger
}

// PubSubHandler consumes job messages from a Pub/Sub subscription and
// runs the matching job. The scheduler platform publishes ops_refresh
// on a cron; health_check doubles as a connectivity probe and a gap
// repair for the most recent day.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	ingestJob        *IngestJob
	logger           zerolog.Logger
}

// NewPubSubHandler connects to the project and prepares the subscriber.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	// Ingest runs can outlive the default ack deadline when the feed
	// pages slowly.
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		ingestJob:        cfg.IngestJob,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks receiving messages until ctx is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("consuming job messages")

	return h.subscriber.Receive(ctx, h.handleMessage)
}

// Close releases the underlying Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("published_at", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error().Err(err).Msg("undecodable job message")
		msg.Nack()
		return
	}

	start := time.Now()
	var err error
	switch job.JobType {
	case JobTypeOpsRefresh:
		err = h.runOpsRefresh(ctx, job)
	case JobTypeHealthCheck:
		err = h.runHealthCheck(ctx)
	default:
		// Acking keeps a misconfigured producer from wedging the
		// subscription with endless redeliveries.
		logger.Warn().Str("job_type", job.JobType).Msg("ignoring unknown job type")
		msg.Ack()
		return
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(start)).
		Msg("job done")
	msg.Ack()
}

func (h *PubSubHandler) runOpsRefresh(ctx context.Context, job JobMessage) error {
	window, err := resolveWindow(h.ingestJob.config, job, time.Now())
	if err != nil {
		return err
	}

	h.logger.Info().
		Time("from", window.From).
		Time("to", window.To).
		Msg("ops refresh starting")

	result := h.ingestJob.Run(ctx, window)

	h.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("stored", result.Stored).
		Msg("ops refresh finished")

	// Partial feed outages are tolerated; a majority of failed chunks
	// means the message must be redelivered.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many chunk failures: %d of %d", result.Failed, result.TotalChunks)
	}
	return nil
}

// resolveWindow picks the explicit window from the message, falling
// back to the trailing window ending before now.
func resolveWindow(cfg IngestConfig, job JobMessage, now time.Time) (Window, error) {
	if job.From == "" && job.To == "" {
		return cfg.TrailingWindow(now), nil
	}

	from, err := time.Parse(windowLayout, job.From)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start %q: %w", job.From, err)
	}
	to, err := time.Parse(windowLayout, job.To)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end %q: %w", job.To, err)
	}
	if to.Before(from) {
		return Window{}, fmt.Errorf("window end %s precedes start %s", job.To, job.From)
	}
	return Window{From: from, To: to}, nil
}

func (h *PubSubHandler) runHealthCheck(ctx context.Context) error {
	// Re-ingest yesterday in a single chunk. Inserts are idempotent, so
	// the probe doubles as gap repair for the latest day.
	probeConfig := IngestConfig{
		WindowDays:  1,
		ChunkDays:   1,
		Concurrency: 1,
		Timeout:     30 * time.Second,
	}
	probe := NewIngestJob(IngestJobConfig{
		Config:  probeConfig,
		Service: h.ingestJob.service,
		Logger:  h.logger,
	})

	result := probe.Run(ctx, probeConfig.TrailingWindow(time.Now()))
	if result.Failed > 0 {
		return fmt.Errorf("probe ingest failed: %d errors", result.Failed)
	}
	return nil
}
