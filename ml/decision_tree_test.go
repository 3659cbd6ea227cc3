package ml

import (
	"path/filepath"
	"testing"
)

// Married <= 0.5 -> no churn; otherwise Satisfaction <= 3 -> churn.
func testTree() *DecisionTree {
	return NewDecisionTree(
		[]string{"Married", "Satisfaction Score"},
		[]TreeNode{
			{FeatureIdx: 0, Threshold: 0.5, LeftChild: 1, RightChild: 2},
			{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 0, IsLeaf: true, Probability: 0.8},
			{FeatureIdx: 1, Threshold: 3, LeftChild: 3, RightChild: 4},
			{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 1, IsLeaf: true, Probability: 0.7},
			{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 0, IsLeaf: true},
		},
	)
}

func TestDecisionTreePredict(t *testing.T) {
	model := testTree()

	label, confidence, err := model.Predict([]float64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected label 1, got %d", label)
	}
	if confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %f", confidence)
	}

	label, confidence, err = model.Predict([]float64{1, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 || confidence <= 0 {
		t.Fatalf("expected label 0 with confidence, got %d/%f", label, confidence)
	}
}

func TestDecisionTreeRejectsShortInput(t *testing.T) {
	if _, _, err := testTree().Predict([]float64{1}); err == nil {
		t.Fatal("expected error for missing feature")
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	model := &DecisionTree{}
	if _, _, err := model.Predict([]float64{0}); err == nil {
		t.Fatal("expected error for empty tree")
	}
}

func TestDecisionTreeCycle(t *testing.T) {
	model := NewDecisionTree([]string{"a"}, []TreeNode{{FeatureIdx: 0, Threshold: 1, LeftChild: 0, RightChild: 0}})
	if _, _, err := model.Predict([]float64{0}); err == nil {
		t.Fatal("expected error for cyclic tree")
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := testTree().Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadModel("", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	names := loaded.FeatureNames()
	if len(names) != 2 || names[0] != "Married" {
		t.Fatalf("unexpected features: %v", names)
	}
	label, _, err := loaded.Predict([]float64{1, 2})
	if err != nil || label != 1 {
		t.Fatalf("expected label 1, got %d (%v)", label, err)
	}
}
