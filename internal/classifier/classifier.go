// Package classifier trains and serves the flight delay model: a logistic
// regression over the fixed feature schema, weighted to compensate for how
// rare delays are in the data.
package classifier

import (
	"errors"
	"math/rand"

	"github.com/delaycast/delaycast/internal/features"
)

// Training defaults. The seed pins weight initialization so that training
// the same data twice produces the same model.
const (
	DefaultSeed         int64 = 42
	DefaultLearningRate       = 0.1
	DefaultEpochs             = 1000
)

// Classifier errors.
var (
	// ErrNotFit is returned when parameters are requested from a
	// classifier that has never been fit.
	ErrNotFit = errors.New("classifier has not been fit")

	// ErrNoTrainingData is returned by Fit for an empty training set.
	ErrNoTrainingData = errors.New("no training data")

	// ErrLabelCount is returned by Fit when labels and rows disagree.
	ErrLabelCount = errors.New("label count does not match row count")

	// ErrSingleClass is returned by Fit when the training labels contain
	// only delayed or only on-time flights.
	ErrSingleClass = errors.New("training data contains a single class")

	// ErrSchemaMismatch is returned by Import when stored parameters do
	// not line up with the classifier's feature schema.
	ErrSchemaMismatch = errors.New("model parameters do not match the feature schema")
)

// Config holds configuration for a DelayClassifier. Zero values fall back
// to the defaults above and the standard feature schema.
type Config struct {
	Features     []string
	Seed         int64
	LearningRate float64
	Epochs       int
}

// DelayClassifier predicts whether flights will depart more than fifteen
// minutes late. Predict is safe to call from multiple goroutines, but not
// concurrently with Fit or Import; callers who retrain a live classifier
// must serialize access themselves.
type DelayClassifier struct {
	features     []string
	seed         int64
	learningRate float64
	epochs       int

	model *logisticModel
}

// New creates an unfit classifier.
func New(cfg Config) *DelayClassifier {
	feats := cfg.Features
	if feats == nil {
		feats = features.TopFeatures()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	lr := cfg.LearningRate
	if lr == 0 {
		lr = DefaultLearningRate
	}
	epochs := cfg.Epochs
	if epochs == 0 {
		epochs = DefaultEpochs
	}

	return &DelayClassifier{
		features:     feats,
		seed:         seed,
		learningRate: lr,
		epochs:       epochs,
	}
}

// Features returns the model input schema in order.
func (c *DelayClassifier) Features() []string {
	feats := make([]string, len(c.features))
	copy(feats, c.features)
	return feats
}

// IsFit reports whether the classifier holds a trained model.
func (c *DelayClassifier) IsFit() bool {
	return c.model != nil
}

// ClassWeights returns the per-class sample weights used during training:
// each class is weighted by the share of the opposite class, so delayed and
// on-time flights contribute equally to the loss however rare delays are.
// Returns nil for empty labels.
func ClassWeights(labels []int) map[int]float64 {
	if len(labels) == 0 {
		return nil
	}

	delayed := 0
	for _, y := range labels {
		if y == 1 {
			delayed++
		}
	}
	total := float64(len(labels))

	return map[int]float64{
		1: float64(len(labels)-delayed) / total,
		0: float64(delayed) / total,
	}
}

// Fit trains a new model on the given matrix and labels. The matrix is
// reindexed to the classifier's feature schema first, so a matrix with
// extra, missing or reordered columns still fits cleanly.
//
// Fit replaces the current model only after training succeeds; on error the
// previously fit model keeps serving.
func (c *DelayClassifier) Fit(m *features.Matrix, labels []int) error {
	if m == nil || m.NumRows() == 0 {
		return ErrNoTrainingData
	}
	if len(labels) != m.NumRows() {
		return ErrLabelCount
	}

	delayed := 0
	for _, y := range labels {
		if y == 1 {
			delayed++
		}
	}
	if delayed == 0 || delayed == len(labels) {
		return ErrSingleClass
	}

	x := m.Reindex(c.features)
	rows := make([][]float64, x.NumRows())
	for i := range rows {
		rows[i] = x.Row(i)
	}

	weights := ClassWeights(labels)
	sampleWeights := make([]float64, len(labels))
	for i, y := range labels {
		sampleWeights[i] = weights[y]
	}

	model := newLogisticModel(len(c.features), rand.New(rand.NewSource(c.seed)))
	model.fit(rows, labels, sampleWeights, c.learningRate, c.epochs)

	c.model = model
	return nil
}

// Predict returns one label per matrix row, in row order: 1 for flights
// predicted to depart more than fifteen minutes late, 0 otherwise. The
// matrix is reindexed to the model schema, so unknown columns are dropped
// and missing ones read as zero.
//
// An unfit classifier predicts every flight on time rather than failing,
// which keeps the serving path available before the first training run.
func (c *DelayClassifier) Predict(m *features.Matrix) []int {
	preds := make([]int, m.NumRows())
	if c.model == nil {
		return preds
	}

	x := m.Reindex(c.features)
	for i := range preds {
		preds[i] = c.model.predict(x.Row(i))
	}
	return preds
}

// ModelParams is the portable form of a trained model.
type ModelParams struct {
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Export returns a copy of the trained model parameters.
func (c *DelayClassifier) Export() (*ModelParams, error) {
	if c.model == nil {
		return nil, ErrNotFit
	}

	coefs := make([]float64, len(c.model.weights))
	copy(coefs, c.model.weights)

	return &ModelParams{
		Features:     c.Features(),
		Coefficients: coefs,
		Intercept:    c.model.intercept,
	}, nil
}

// Import installs previously exported parameters. The parameter schema must
// match the classifier's feature schema exactly, including order.
func (c *DelayClassifier) Import(params *ModelParams) error {
	if params == nil {
		return ErrSchemaMismatch
	}
	if len(params.Features) != len(c.features) || len(params.Coefficients) != len(c.features) {
		return ErrSchemaMismatch
	}
	for i, name := range params.Features {
		if name != c.features[i] {
			return ErrSchemaMismatch
		}
	}

	weights := make([]float64, len(params.Coefficients))
	copy(weights, params.Coefficients)

	c.model = &logisticModel{weights: weights, intercept: params.Intercept}
	return nil
}
