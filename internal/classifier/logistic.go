package classifier

import (
	"math"
	"math/rand"
)

// logisticModel is a binary logistic regression over a fixed feature layout.
type logisticModel struct {
	weights   []float64
	intercept float64
}

// newLogisticModel initializes weights with small noise drawn from rng so
// that training runs are reproducible for a fixed seed.
func newLogisticModel(numFeatures int, rng *rand.Rand) *logisticModel {
	weights := make([]float64, numFeatures)
	for i := range weights {
		weights[i] = rng.NormFloat64() * 0.01
	}
	return &logisticModel{weights: weights}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// probability returns P(delayed) for one feature row.
func (m *logisticModel) probability(row []float64) float64 {
	z := m.intercept
	for j, w := range m.weights {
		z += w * row[j]
	}
	return sigmoid(z)
}

// predict thresholds the delay probability at 0.5.
func (m *logisticModel) predict(row []float64) int {
	if m.probability(row) >= 0.5 {
		return 1
	}
	return 0
}

// fit runs full-batch gradient descent on the weighted binary cross entropy
// loss. sampleWeights scales the contribution of each example; gradients are
// normalized by the total sample weight so the learning rate is independent
// of the training set size.
func (m *logisticModel) fit(x [][]float64, y []int, sampleWeights []float64, learningRate float64, epochs int) {
	totalWeight := 0.0
	for _, w := range sampleWeights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return
	}

	gradW := make([]float64, len(m.weights))
	for epoch := 0; epoch < epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i, row := range x {
			diff := sampleWeights[i] * (m.probability(row) - float64(y[i]))
			for j, v := range row {
				if v != 0 {
					gradW[j] += diff * v
				}
			}
			gradB += diff
		}

		step := learningRate / totalWeight
		for j := range m.weights {
			m.weights[j] -= step * gradW[j]
		}
		m.intercept -= step * gradB
	}
}
