package ml

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"churnform/schema"
)

var (
	ErrShapeMismatch    = errors.New("feature vector does not match expected features")
	ErrPredictionFailed = errors.New("prediction failed")
)

// Prediction is the adapter's answer for one vector.
type Prediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
	Cached     bool    `json:"cached"`
}

// Churn reports whether the label means the customer is predicted to leave.
func (p Prediction) Churn() bool {
	return p.Label == 1
}

// Adapter guards a Classifier: it checks vector shape against the registry, turns
// every classifier failure into ErrPredictionFailed and memoises results.
type Adapter struct {
	model    Classifier
	features []string
	cache    *lru.Cache[string, Prediction]
	logger   *zap.Logger
}

// NewAdapter wires model to registry. A cacheSize of zero disables memoisation.
func NewAdapter(model Classifier, registry *schema.Registry, cacheSize int, logger *zap.Logger) (*Adapter, error) {
	if model == nil {
		return nil, errors.New("model is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	features := registry.ExpectedFeatures()
	if names := model.FeatureNames(); len(names) > 0 && !sameColumns(names, features) {
		return nil, fmt.Errorf("%w: model reports %d features, registry has %d", ErrShapeMismatch, len(names), len(features))
	}

	a := &Adapter{model: model, features: features, logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[string, Prediction](cacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	return a, nil
}

func (a *Adapter) Predict(ctx context.Context, vec FeatureVector) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrPredictionFailed, err)
	}
	if len(vec.Values) != len(a.features) || !sameColumns(vec.Columns, a.features) {
		return Prediction{}, fmt.Errorf("%w: got %d columns, want %d", ErrShapeMismatch, len(vec.Columns), len(a.features))
	}

	key := vec.Key()
	if a.cache != nil {
		if p, ok := a.cache.Get(key); ok {
			p.Cached = true
			return p, nil
		}
	}

	p, err := a.invoke(vec.Values)
	if err != nil {
		a.logger.Warn("classifier failed", zap.Error(err))
		return Prediction{}, err
	}
	if a.cache != nil {
		a.cache.Add(key, p)
	}
	return p, nil
}

func (a *Adapter) invoke(values []float64) (p Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = Prediction{}
			err = fmt.Errorf("%w: classifier panicked: %v", ErrPredictionFailed, r)
		}
	}()

	input := append([]float64(nil), values...)
	label, confidence, err := a.model.Predict(input)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrPredictionFailed, err)
	}
	if label != 0 && label != 1 {
		return Prediction{}, fmt.Errorf("%w: label %d is not binary", ErrPredictionFailed, label)
	}
	return Prediction{Label: label, Confidence: confidence}, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
