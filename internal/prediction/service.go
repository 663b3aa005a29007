// Package prediction serves delay predictions from the most recently
// trained model artifact.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/features"
	"github.com/delaycast/delaycast/internal/flights"
	"github.com/delaycast/delaycast/internal/modelstore"
	"github.com/delaycast/delaycast/internal/telemetry"
)

const meterName = "github.com/delaycast/delaycast/internal/prediction"

// DefaultLoadRetryInterval throttles background load attempts while no
// usable artifact exists, so a missing model does not hammer the store on
// every request.
const DefaultLoadRetryInterval = 30 * time.Second

// Config holds configuration for the prediction service.
type Config struct {
	Store  modelstore.Store
	Logger zerolog.Logger

	// Classifier configures the serving classifier shell. The zero value
	// uses the standard schema.
	Classifier classifier.Config

	// LoadRetryInterval overrides DefaultLoadRetryInterval.
	LoadRetryInterval time.Duration
}

// Service predicts flight delays. The model artifact is loaded lazily on
// first use and can be swapped at runtime via Reload; while no artifact is
// available every flight is predicted on time, keeping the endpoint up
// before the first training run.
type Service struct {
	builder       *features.Builder
	store         modelstore.Store
	logger        zerolog.Logger
	clfConfig     classifier.Config
	retryInterval time.Duration

	mu          sync.RWMutex
	clf         *classifier.DelayClassifier
	artifact    *modelstore.Artifact
	lastAttempt time.Time

	flightsScored   metric.Int64Counter
	flightsDelayed  metric.Int64Counter
	predictDuration metric.Float64Histogram
}

// NewService creates a prediction service.
func NewService(cfg Config) (*Service, error) {
	retryInterval := cfg.LoadRetryInterval
	if retryInterval == 0 {
		retryInterval = DefaultLoadRetryInterval
	}

	meter := telemetry.Meter(meterName)

	flightsScored, err := meter.Int64Counter("prediction.flights",
		metric.WithDescription("Number of flights scored"),
		metric.WithUnit("{flight}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create flights counter: %w", err)
	}

	flightsDelayed, err := meter.Int64Counter("prediction.delayed",
		metric.WithDescription("Number of flights predicted delayed"),
		metric.WithUnit("{flight}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create delayed counter: %w", err)
	}

	predictDuration, err := meter.Float64Histogram("prediction.duration",
		metric.WithDescription("Prediction batch duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Service{
		builder:         features.NewBuilder(),
		store:           cfg.Store,
		logger:          cfg.Logger,
		clfConfig:       cfg.Classifier,
		retryInterval:   retryInterval,
		clf:             classifier.New(cfg.Classifier),
		flightsScored:   flightsScored,
		flightsDelayed:  flightsDelayed,
		predictDuration: predictDuration,
	}, nil
}

// Predict scores the given flights and returns one label per flight in
// input order: 1 for predicted delays, 0 otherwise. A structurally invalid
// record fails the whole batch with a features.ValidationError.
func (s *Service) Predict(ctx context.Context, records []flights.Record) ([]int, error) {
	start := time.Now()

	s.ensureLoaded(ctx)

	m, _, err := s.builder.Transform(records, false)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	clf := s.clf
	s.mu.RUnlock()

	preds := clf.Predict(m)

	delayed := 0
	for _, p := range preds {
		delayed += p
	}
	s.flightsScored.Add(ctx, int64(len(preds)))
	s.flightsDelayed.Add(ctx, int64(delayed))
	s.predictDuration.Record(ctx, time.Since(start).Seconds())

	return preds, nil
}

// Reload forces a fresh artifact load, replacing the serving model on
// success. On failure the current model keeps serving.
func (s *Service) Reload(ctx context.Context) error {
	artifact, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	clf := classifier.New(s.clfConfig)
	if err := clf.Import(&artifact.Model); err != nil {
		return err
	}

	s.mu.Lock()
	s.clf = clf
	s.artifact = artifact
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	s.logger.Info().
		Time("trained_at", artifact.TrainedAt).
		Int("training_rows", artifact.TrainingRows).
		Msg("model reloaded")

	return nil
}

// Status describes the serving model.
type Status struct {
	ModelLoaded  bool
	TrainedAt    time.Time
	TrainingRows int
	Features     []string
	Metrics      *classifier.Evaluation
}

// Status reports whether a model is loaded and which one.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{ModelLoaded: s.artifact != nil}
	if s.artifact != nil {
		status.TrainedAt = s.artifact.TrainedAt
		status.TrainingRows = s.artifact.TrainingRows
		status.Features = s.clf.Features()
		if s.artifact.Metrics != nil {
			m := *s.artifact.Metrics
			status.Metrics = &m
		}
	}
	return status
}

// ensureLoaded performs the lazy first load, retrying quietly in the
// background of request handling. Failures leave the unfit fallback in
// place; attempts are throttled by the retry interval.
func (s *Service) ensureLoaded(ctx context.Context) {
	s.mu.RLock()
	loaded := s.artifact != nil
	s.mu.RUnlock()
	if loaded {
		return
	}

	s.mu.Lock()
	if s.artifact != nil || time.Since(s.lastAttempt) < s.retryInterval {
		s.mu.Unlock()
		return
	}
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	artifact, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, modelstore.ErrNotFound) {
			s.logger.Debug().Msg("no model artifact yet, serving on-time fallback")
		} else {
			s.logger.Warn().Err(err).Msg("failed to load model artifact")
		}
		return
	}

	clf := classifier.New(s.clfConfig)
	if err := clf.Import(&artifact.Model); err != nil {
		s.logger.Warn().Err(err).Msg("failed to install model artifact")
		return
	}

	s.mu.Lock()
	s.clf = clf
	s.artifact = artifact
	s.mu.Unlock()

	s.logger.Info().
		Time("trained_at", artifact.TrainedAt).
		Int("training_rows", artifact.TrainingRows).
		Msg("model loaded")
}
