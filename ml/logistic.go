package ml

import (
	"errors"
	"math"
)

// LogisticModel scores sigmoid(w·x + b) and labels 1 at or above Threshold.
type LogisticModel struct {
	ModelType string    `json:"model_type"`
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Threshold float64   `json:"threshold"`
}

func (m *LogisticModel) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

func (m *LogisticModel) Predict(features []float64) (int, float64, error) {
	if len(features) != len(m.Weights) {
		return 0, 0, errors.New("feature count does not match weights")
	}
	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, 0, errors.New("score is not a number")
	}
	threshold := m.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	if p >= threshold {
		return 1, p, nil
	}
	return 0, 1 - p, nil
}

func (m *LogisticModel) validate() error {
	if len(m.Weights) != len(m.Features) {
		return errors.New("logistic model weights and features size mismatch")
	}
	return nil
}
