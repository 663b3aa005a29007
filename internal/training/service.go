// Package training runs the pipeline from stored flight records to a
// persisted model artifact: encode, split, fit, evaluate, save.
package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/features"
	"github.com/delaycast/delaycast/internal/flights"
	"github.com/delaycast/delaycast/internal/modelstore"
)

// DefaultTestFraction is the share of records held out for evaluation.
const DefaultTestFraction = 0.33

// Config holds configuration for the training service.
type Config struct {
	Store  modelstore.Store
	Logger zerolog.Logger

	// Classifier configures the model trained on each run. The zero value
	// uses the standard schema and defaults.
	Classifier classifier.Config

	// TestFraction is the held-out share for evaluation.
	// Default: DefaultTestFraction.
	TestFraction float64

	// Seed drives the train/test shuffle. Default: classifier.DefaultSeed,
	// so repeated runs on the same data produce the same artifact.
	Seed int64
}

// Service trains delay models and persists them.
type Service struct {
	builder      *features.Builder
	store        modelstore.Store
	logger       zerolog.Logger
	clfConfig    classifier.Config
	testFraction float64
	seed         int64
}

// NewService creates a training service.
func NewService(cfg Config) *Service {
	testFraction := cfg.TestFraction
	if testFraction == 0 {
		testFraction = DefaultTestFraction
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = classifier.DefaultSeed
	}

	return &Service{
		builder:      features.NewBuilder(),
		store:        cfg.Store,
		logger:       cfg.Logger,
		clfConfig:    cfg.Classifier,
		testFraction: testFraction,
		seed:         seed,
	}
}

// Summary describes one training run.
type Summary struct {
	Rows      int
	TrainRows int
	TestRows  int
	Delayed   int
	DelayRate float64
	Metrics   classifier.Evaluation
	Duration  time.Duration
}

// Train fits a model on records from the source and saves the resulting
// artifact. A held-out split is used for the reported metrics; when the
// source is too small to hold anything out, metrics are computed on the
// training data itself.
func (s *Service) Train(ctx context.Context, source flights.Source) (*Summary, error) {
	start := time.Now()

	records, err := source.List(ctx, flights.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list flight records: %w", err)
	}
	if len(records) == 0 {
		return nil, flights.ErrNoRecords
	}

	m, labels, err := s.builder.Transform(records, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flight records: %w", err)
	}

	delayed := 0
	for _, y := range labels {
		delayed += y
	}

	trainIdx, testIdx := split(len(records), s.testFraction, s.seed)
	trainM := m.Select(trainIdx)
	trainLabels := pick(labels, trainIdx)

	clf := classifier.New(s.clfConfig)
	if err := clf.Fit(trainM, trainLabels); err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	evalM, evalLabels := trainM, trainLabels
	if len(testIdx) > 0 {
		evalM = m.Select(testIdx)
		evalLabels = pick(labels, testIdx)
	}
	eval := classifier.Evaluate(evalLabels, clf.Predict(evalM))

	params, err := clf.Export()
	if err != nil {
		return nil, fmt.Errorf("failed to export model: %w", err)
	}

	artifact := &modelstore.Artifact{
		Version:      modelstore.ArtifactVersion,
		Model:        *params,
		Seed:         s.seed,
		TrainedAt:    time.Now().UTC(),
		TrainingRows: len(trainIdx),
		Metrics:      &eval,
	}
	if err := s.store.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to save model artifact: %w", err)
	}

	summary := &Summary{
		Rows:      len(records),
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Delayed:   delayed,
		DelayRate: float64(delayed) / float64(len(records)),
		Metrics:   eval,
		Duration:  time.Since(start),
	}

	s.logger.Info().
		Int("rows", summary.Rows).
		Int("train_rows", summary.TrainRows).
		Int("test_rows", summary.TestRows).
		Float64("delay_rate", summary.DelayRate).
		Float64("recall", eval.Recall).
		Float64("f1", eval.F1).
		Dur("duration", summary.Duration).
		Msg("trained delay model")

	return summary, nil
}

// Evaluate scores the stored model against labeled records from the source.
func (s *Service) Evaluate(ctx context.Context, source flights.Source) (*classifier.Evaluation, error) {
	artifact, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	clf := classifier.New(s.clfConfig)
	if err := clf.Import(&artifact.Model); err != nil {
		return nil, err
	}

	records, err := source.List(ctx, flights.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list flight records: %w", err)
	}
	if len(records) == 0 {
		return nil, flights.ErrNoRecords
	}

	m, labels, err := s.builder.Transform(records, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flight records: %w", err)
	}

	eval := classifier.Evaluate(labels, clf.Predict(m))
	return &eval, nil
}

// split shuffles row indices with the given seed and carves off the test
// share. The test partition rounds up, so any non-zero fraction holds out
// at least one row.
func split(n int, testFraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testSize := int(math.Ceil(float64(n) * testFraction))
	if testSize > n {
		testSize = n
	}
	return perm[testSize:], perm[:testSize]
}

func pick(labels []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}
