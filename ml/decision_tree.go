package ml

import (
	"encoding/json"
	"errors"
	"os"
)

type DecisionTree struct {
	features []string
	nodes    []TreeNode
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	ClassLabel  int     `json:"class_label"`
	IsLeaf      bool    `json:"is_leaf"`
	Probability float64 `json:"probability,omitempty"`
}

type treeArtifact struct {
	ModelType string     `json:"model_type"`
	Features  []string   `json:"features"`
	Nodes     []TreeNode `json:"nodes"`
}

func NewDecisionTree(features []string, nodes []TreeNode) *DecisionTree {
	return &DecisionTree{
		features: append([]string(nil), features...),
		nodes:    append([]TreeNode(nil), nodes...),
	}
}

func (dt *DecisionTree) FeatureNames() []string {
	return append([]string(nil), dt.features...)
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	if len(dt.nodes) == 0 {
		return 0, 0, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, leafConfidence(node), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, 0, errors.New("invalid tree state")
		}
	}
	return 0, 0, errors.New("tree contains a cycle")
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(dt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return dt.UnmarshalJSON(payload)
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(treeArtifact{
		ModelType: ModelDecisionTree,
		Features:  dt.features,
		Nodes:     dt.nodes,
	})
}

func (dt *DecisionTree) UnmarshalJSON(payload []byte) error {
	var artifact treeArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return err
	}
	if len(artifact.Nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	dt.features = artifact.Features
	dt.nodes = artifact.Nodes
	return nil
}

func leafConfidence(node TreeNode) float64 {
	if node.Probability > 0 && node.Probability <= 1 {
		return node.Probability
	}
	return 0.6
}
