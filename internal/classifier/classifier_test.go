package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/features"
)

// imbalancedTrainingSet builds 100 flights where delays are rare (9%) and
// concentrated in July: 20 July rows with 9 delayed, 80 December rows all
// on time. Without class weighting a fit would predict on time for
// everything.
func imbalancedTrainingSet() (*features.Matrix, []int) {
	m := features.NewMatrix(features.TopFeatures(), 100)
	labels := make([]int, 100)

	for i := 0; i < 20; i++ {
		m.Set(i, "MES_7", 1)
		if i < 9 {
			labels[i] = 1
		}
	}
	for i := 20; i < 100; i++ {
		m.Set(i, "MES_12", 1)
	}

	return m, labels
}

func TestClassWeights(t *testing.T) {
	labels := make([]int, 100)
	for i := 0; i < 10; i++ {
		labels[i] = 1
	}

	weights := classifier.ClassWeights(labels)

	require.Len(t, weights, 2)
	assert.InDelta(t, 0.90, weights[1], 1e-9, "delayed flights weighted by on-time share")
	assert.InDelta(t, 0.10, weights[0], 1e-9, "on-time flights weighted by delayed share")

	assert.Nil(t, classifier.ClassWeights(nil))
}

func TestDelayClassifier_UnfitPredictsOnTime(t *testing.T) {
	clf := classifier.New(classifier.Config{})
	require.False(t, clf.IsFit())

	m := features.NewMatrix(features.TopFeatures(), 4)
	m.Set(0, "MES_7", 1)
	m.Set(1, "OPERA_Grupo LATAM", 1)

	preds := clf.Predict(m)
	assert.Equal(t, []int{0, 0, 0, 0}, preds)
}

func TestDelayClassifier_FitCatchesRareDelays(t *testing.T) {
	m, labels := imbalancedTrainingSet()

	clf := classifier.New(classifier.Config{})
	require.NoError(t, clf.Fit(m, labels))
	require.True(t, clf.IsFit())

	preds := clf.Predict(m)

	// Class weighting should make the model flag the July group even
	// though only 9% of all flights are delayed.
	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, preds[i], "July flight %d should be predicted delayed", i)
	}
	for i := 20; i < 100; i++ {
		assert.Equal(t, 0, preds[i], "December flight %d should be predicted on time", i)
	}

	eval := classifier.Evaluate(labels, preds)
	assert.Equal(t, 1.0, eval.Recall, "every delayed flight is caught")
}

func TestDelayClassifier_FitIsDeterministic(t *testing.T) {
	m, labels := imbalancedTrainingSet()

	first := classifier.New(classifier.Config{})
	second := classifier.New(classifier.Config{})
	require.NoError(t, first.Fit(m, labels))
	require.NoError(t, second.Fit(m, labels))

	p1, err := first.Export()
	require.NoError(t, err)
	p2, err := second.Export()
	require.NoError(t, err)

	assert.Equal(t, p1.Features, p2.Features)
	assert.Equal(t, p1.Coefficients, p2.Coefficients)
	assert.Equal(t, p1.Intercept, p2.Intercept)
	assert.Equal(t, first.Predict(m), second.Predict(m))
}

func TestDelayClassifier_FitValidation(t *testing.T) {
	m, labels := imbalancedTrainingSet()
	clf := classifier.New(classifier.Config{})

	err := clf.Fit(features.NewMatrix(features.TopFeatures(), 0), nil)
	assert.ErrorIs(t, err, classifier.ErrNoTrainingData)

	err = clf.Fit(m, labels[:10])
	assert.ErrorIs(t, err, classifier.ErrLabelCount)

	err = clf.Fit(m, make([]int, m.NumRows()))
	assert.ErrorIs(t, err, classifier.ErrSingleClass)

	assert.False(t, clf.IsFit(), "failed fits must not install a model")
}

func TestDelayClassifier_FailedRefitKeepsServingOldModel(t *testing.T) {
	m, labels := imbalancedTrainingSet()

	clf := classifier.New(classifier.Config{})
	require.NoError(t, clf.Fit(m, labels))
	before := clf.Predict(m)

	err := clf.Fit(m, make([]int, m.NumRows()))
	require.ErrorIs(t, err, classifier.ErrSingleClass)

	assert.True(t, clf.IsFit())
	assert.Equal(t, before, clf.Predict(m), "predictions must be unchanged after a failed refit")
}

func TestDelayClassifier_PredictReconcilesSchema(t *testing.T) {
	m, labels := imbalancedTrainingSet()
	clf := classifier.New(classifier.Config{})
	require.NoError(t, clf.Fit(m, labels))

	// A serving-time matrix with a carrier the model never saw and only a
	// subset of the schema columns.
	serving := features.NewMatrix([]string{"OPERA_Brand New Air", "MES_7", "MES_3"}, 2)
	serving.Set(0, "OPERA_Brand New Air", 1)
	serving.Set(0, "MES_7", 1)
	serving.Set(1, "OPERA_Brand New Air", 1)
	serving.Set(1, "MES_3", 1)

	preds := clf.Predict(serving)

	require.Len(t, preds, 2)
	assert.Equal(t, 1, preds[0], "July still reads as delayed; the unknown carrier is ignored")
	assert.Equal(t, 0, preds[1], "a row with no schema signal reads as on time")
}

func TestDelayClassifier_ExportImportRoundTrip(t *testing.T) {
	m, labels := imbalancedTrainingSet()
	trained := classifier.New(classifier.Config{})
	require.NoError(t, trained.Fit(m, labels))

	params, err := trained.Export()
	require.NoError(t, err)
	require.Equal(t, features.TopFeatures(), params.Features)
	require.Len(t, params.Coefficients, 10)

	restored := classifier.New(classifier.Config{})
	require.NoError(t, restored.Import(params))
	assert.True(t, restored.IsFit())
	assert.Equal(t, trained.Predict(m), restored.Predict(m))
}

func TestDelayClassifier_ExportUnfit(t *testing.T) {
	clf := classifier.New(classifier.Config{})

	_, err := clf.Export()
	assert.ErrorIs(t, err, classifier.ErrNotFit)
}

func TestDelayClassifier_ImportRejectsMismatchedSchema(t *testing.T) {
	clf := classifier.New(classifier.Config{})

	tests := []struct {
		name   string
		params *classifier.ModelParams
	}{
		{"nil params", nil},
		{"wrong feature count", &classifier.ModelParams{
			Features:     []string{"MES_7"},
			Coefficients: []float64{0.5},
		}},
		{"reordered features", &classifier.ModelParams{
			Features:     reversed(features.TopFeatures()),
			Coefficients: make([]float64, 10),
		}},
		{"coefficient count mismatch", &classifier.ModelParams{
			Features:     features.TopFeatures(),
			Coefficients: make([]float64, 3),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := clf.Import(tt.params)
			assert.ErrorIs(t, err, classifier.ErrSchemaMismatch)
			assert.False(t, clf.IsFit())
		})
	}
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
