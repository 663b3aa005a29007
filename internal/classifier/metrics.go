package classifier

// ConfusionMatrix counts binary classification outcomes, with delayed (1)
// as the positive class.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// Confusion tallies predictions against true labels. Both slices must have
// the same length.
func Confusion(yTrue, yPred []int) ConfusionMatrix {
	var cm ConfusionMatrix
	for i, truth := range yTrue {
		switch {
		case truth == 1 && yPred[i] == 1:
			cm.TruePositives++
		case truth == 0 && yPred[i] == 1:
			cm.FalsePositives++
		case truth == 0 && yPred[i] == 0:
			cm.TrueNegatives++
		default:
			cm.FalseNegatives++
		}
	}
	return cm
}

// Accuracy is the share of correct predictions.
func (cm ConfusionMatrix) Accuracy() float64 {
	total := cm.TruePositives + cm.FalsePositives + cm.TrueNegatives + cm.FalseNegatives
	if total == 0 {
		return 0
	}
	return float64(cm.TruePositives+cm.TrueNegatives) / float64(total)
}

// Precision is the share of predicted delays that really were delayed.
// Returns 0 when nothing was predicted delayed.
func (cm ConfusionMatrix) Precision() float64 {
	denom := cm.TruePositives + cm.FalsePositives
	if denom == 0 {
		return 0
	}
	return float64(cm.TruePositives) / float64(denom)
}

// Recall is the share of actual delays that were caught. Returns 0 when the
// data contains no delays.
func (cm ConfusionMatrix) Recall() float64 {
	denom := cm.TruePositives + cm.FalseNegatives
	if denom == 0 {
		return 0
	}
	return float64(cm.TruePositives) / float64(denom)
}

// F1 is the harmonic mean of precision and recall.
func (cm ConfusionMatrix) F1() float64 {
	p, r := cm.Precision(), cm.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Evaluation summarizes model quality on a labeled data set.
type Evaluation struct {
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Confusion ConfusionMatrix `json:"confusion"`
}

// Evaluate computes all metrics for predictions against true labels.
func Evaluate(yTrue, yPred []int) Evaluation {
	cm := Confusion(yTrue, yPred)
	return Evaluation{
		Accuracy:  cm.Accuracy(),
		Precision: cm.Precision(),
		Recall:    cm.Recall(),
		F1:        cm.F1(),
		Confusion: cm,
	}
}
