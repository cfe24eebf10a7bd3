package ml

import (
	"testing"
)

// stumpNodes splits on feature 0 at 0.5: left leaf 1.0, right leaf 3.0.
func stumpNodes(left, right float64) []TreeNode {
	return []TreeNode{
		{FeatureIdx: 0, Threshold: 0.5, LeftChild: 1, RightChild: 2},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: left, IsLeaf: true},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: right, IsLeaf: true},
	}
}

func TestDecisionTreePredict(t *testing.T) {
	model, err := NewDecisionTree(stumpNodes(1, 3), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := model.Predict([]float64{0.15, 0.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected 1, got %v", value)
	}

	// threshold is inclusive on the left
	value, err = model.Predict([]float64{0.5, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected 1 at threshold, got %v", value)
	}

	value, err = model.Predict([]float64{0.51, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 3 {
		t.Fatalf("expected 3, got %v", value)
	}
}

func TestDecisionTreeRejectsBadStructure(t *testing.T) {
	cases := map[string][]TreeNode{
		"empty": nil,
		"feature out of range": {
			{FeatureIdx: 5, Threshold: 0, LeftChild: 1, RightChild: 2},
			{IsLeaf: true},
			{IsLeaf: true},
		},
		"child out of range": {
			{FeatureIdx: 0, LeftChild: 1, RightChild: 7},
			{IsLeaf: true},
		},
		"cycle": {
			{FeatureIdx: 0, LeftChild: 1, RightChild: 2},
			{FeatureIdx: 0, LeftChild: 1, RightChild: 2},
			{IsLeaf: true},
		},
		"unreachable node": {
			{IsLeaf: true, Value: 1},
			{IsLeaf: true, Value: 2},
		},
	}
	for name, nodes := range cases {
		if _, err := NewDecisionTree(nodes, 2); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRandomForestAverages(t *testing.T) {
	a, _ := NewDecisionTree(stumpNodes(1, 3), 1)
	b, _ := NewDecisionTree(stumpNodes(2, 5), 1)
	forest, err := NewRandomForest([]*DecisionTree{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := forest.Predict([]float64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1.5 {
		t.Fatalf("expected 1.5, got %v", value)
	}
}

func TestGradientBoostingSums(t *testing.T) {
	a, _ := NewDecisionTree(stumpNodes(1, 3), 1)
	b, _ := NewDecisionTree(stumpNodes(2, 5), 1)
	model, err := NewGradientBoosting(10, 0.5, []*DecisionTree{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := model.Predict([]float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 14 {
		t.Fatalf("expected 14, got %v", value)
	}

	if _, err := NewGradientBoosting(0, 0, []*DecisionTree{a}); err == nil {
		t.Fatal("expected error for zero learning rate")
	}
}

func TestEnsembleWidthMismatch(t *testing.T) {
	a, _ := NewDecisionTree(stumpNodes(1, 3), 1)
	b, _ := NewDecisionTree(stumpNodes(1, 3), 2)
	if _, err := NewRandomForest([]*DecisionTree{a, b}); err == nil {
		t.Fatal("expected error for mixed feature counts")
	}
	if _, err := NewRandomForest(nil); err == nil {
		t.Fatal("expected error for empty forest")
	}
}
