package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	ModelDecisionTree       = "decision_tree"
	ModelLogisticRegression = "logistic_regression"
)

var ErrUnsupportedModel = errors.New("unsupported model type")

type artifactHeader struct {
	ModelType string   `json:"model_type"`
	Features  []string `json:"features"`
}

// LoadModel reads the model artifact at path. An empty modelType is taken from the
// artifact's own model_type field.
func LoadModel(modelType, path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var header artifactHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if modelType == "" {
		modelType = header.ModelType
	}
	if header.ModelType != "" && header.ModelType != modelType {
		return nil, fmt.Errorf("model artifact is %q, configured %q", header.ModelType, modelType)
	}
	if len(header.Features) == 0 {
		return nil, errors.New("model artifact lists no features")
	}

	switch modelType {
	case ModelDecisionTree:
		model := &DecisionTree{}
		if err := model.UnmarshalJSON(payload); err != nil {
			return nil, err
		}
		return model, nil
	case ModelLogisticRegression:
		model := &LogisticModel{}
		if err := json.Unmarshal(payload, model); err != nil {
			return nil, err
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}
}
