package ml

import (
	"errors"
	"math"
)

const (
	KindDecisionTree     = "decision_tree"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// DecisionTree is a fitted regression tree stored as a flat node array with
// the root at index 0.
type DecisionTree struct {
	nodes []TreeNode
	n     int
}

func NewDecisionTree(nodes []TreeNode, numFeatures int) (*DecisionTree, error) {
	if numFeatures <= 0 {
		return nil, invalidArtifact("%s: needs a positive feature count", KindDecisionTree)
	}
	if err := validateTree(nodes, numFeatures); err != nil {
		return nil, err
	}
	return &DecisionTree{nodes: append([]TreeNode(nil), nodes...), n: numFeatures}, nil
}

func (dt *DecisionTree) Predict(features []float64) (float64, error) {
	if err := checkDimension(features, dt.n); err != nil {
		return 0, err
	}
	return dt.walk(features)
}

func (dt *DecisionTree) walk(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	// validateTree rules out cycles, so a path is at most len(nodes) long.
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return 0, errors.New("invalid tree state")
}

func (dt *DecisionTree) NumFeatures() int { return dt.n }
func (dt *DecisionTree) Kind() string     { return KindDecisionTree }

// Nodes returns a copy of the node array.
func (dt *DecisionTree) Nodes() []TreeNode {
	return append([]TreeNode(nil), dt.nodes...)
}

// validateTree checks indices and that every node is reachable from the root
// exactly once, which also excludes cycles.
func validateTree(nodes []TreeNode, numFeatures int) error {
	if len(nodes) == 0 {
		return invalidArtifact("tree has no nodes")
	}
	seen := make([]bool, len(nodes))
	stack := []int{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[idx] {
			return invalidArtifact("tree node %d reached twice", idx)
		}
		seen[idx] = true

		node := nodes[idx]
		if node.IsLeaf {
			if math.IsNaN(node.Value) || math.IsInf(node.Value, 0) {
				return invalidArtifact("tree leaf %d has non-finite value", idx)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= numFeatures {
			return invalidArtifact("tree node %d: feature index %d out of range", idx, node.FeatureIdx)
		}
		if math.IsNaN(node.Threshold) {
			return invalidArtifact("tree node %d: threshold is NaN", idx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= 0 || child >= len(nodes) {
				return invalidArtifact("tree node %d: child index %d out of range", idx, child)
			}
			stack = append(stack, child)
		}
	}
	for idx, ok := range seen {
		if !ok {
			return invalidArtifact("tree node %d is unreachable", idx)
		}
	}
	return nil
}

// RandomForest averages the predictions of its trees.
type RandomForest struct {
	trees []*DecisionTree
	n     int
}

func NewRandomForest(trees []*DecisionTree) (*RandomForest, error) {
	n, err := ensembleWidth(KindRandomForest, trees)
	if err != nil {
		return nil, err
	}
	return &RandomForest{trees: trees, n: n}, nil
}

func (rf *RandomForest) Predict(features []float64) (float64, error) {
	if err := checkDimension(features, rf.n); err != nil {
		return 0, err
	}
	var sum float64
	for _, tree := range rf.trees {
		v, err := tree.walk(features)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	y := sum / float64(len(rf.trees))
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, ErrNonFinite
	}
	return y, nil
}

func (rf *RandomForest) NumFeatures() int { return rf.n }
func (rf *RandomForest) Kind() string     { return KindRandomForest }

// GradientBoosting predicts init + learningRate * sum(tree(x)).
type GradientBoosting struct {
	init         float64
	learningRate float64
	trees        []*DecisionTree
	n            int
}

func NewGradientBoosting(init, learningRate float64, trees []*DecisionTree) (*GradientBoosting, error) {
	n, err := ensembleWidth(KindGradientBoosting, trees)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(init) || math.IsInf(init, 0) {
		return nil, invalidArtifact("%s: init must be finite", KindGradientBoosting)
	}
	if !(learningRate > 0) || math.IsInf(learningRate, 0) {
		return nil, invalidArtifact("%s: learning rate must be positive", KindGradientBoosting)
	}
	return &GradientBoosting{init: init, learningRate: learningRate, trees: trees, n: n}, nil
}

func (gb *GradientBoosting) Predict(features []float64) (float64, error) {
	if err := checkDimension(features, gb.n); err != nil {
		return 0, err
	}
	var sum float64
	for _, tree := range gb.trees {
		v, err := tree.walk(features)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	y := gb.init + gb.learningRate*sum
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, ErrNonFinite
	}
	return y, nil
}

func (gb *GradientBoosting) NumFeatures() int { return gb.n }
func (gb *GradientBoosting) Kind() string     { return KindGradientBoosting }

func ensembleWidth(kind string, trees []*DecisionTree) (int, error) {
	if len(trees) == 0 {
		return 0, invalidArtifact("%s: no trees", kind)
	}
	n := 0
	for i, tree := range trees {
		if tree == nil {
			return 0, invalidArtifact("%s: tree %d is nil", kind, i)
		}
		if i == 0 {
			n = tree.n
		}
		if tree.n != n {
			return 0, invalidArtifact("%s: tree %d expects %d features, tree 0 expects %d", kind, i, tree.n, n)
		}
	}
	return n, nil
}
