package ml

import (
	"encoding/json"
	"fmt"
)

// Artifact is the on-disk envelope shared by scalers and regressors.
type Artifact struct {
	Kind          string          `json:"kind"`
	NumFeaturesIn int             `json:"n_features_in"`
	Params        json.RawMessage `json:"params,omitempty"`
}

type standardScalerParams struct {
	Mean     []float64 `json:"mean,omitempty"`
	Scale    []float64 `json:"scale,omitempty"`
	WithMean *bool     `json:"with_mean,omitempty"`
	WithStd  *bool     `json:"with_std,omitempty"`
}

type minMaxScalerParams struct {
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
}

type robustScalerParams struct {
	Center        []float64 `json:"center,omitempty"`
	Scale         []float64 `json:"scale,omitempty"`
	WithCentering *bool     `json:"with_centering,omitempty"`
	WithScaling   *bool     `json:"with_scaling,omitempty"`
}

type constantParams struct {
	Value float64 `json:"value"`
}

type linearParams struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

type treeParams struct {
	Nodes []TreeNode `json:"nodes"`
}

type forestParams struct {
	Trees [][]TreeNode `json:"trees"`
}

type boostingParams struct {
	Init         float64      `json:"init"`
	LearningRate float64      `json:"learning_rate"`
	Trees        [][]TreeNode `json:"trees"`
}

func decodeArtifact(payload []byte) (Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return a, invalidArtifact("decode envelope: %v", err)
	}
	if a.Kind == "" {
		return a, invalidArtifact("missing kind")
	}
	if a.NumFeaturesIn <= 0 {
		return a, invalidArtifact("%s: n_features_in must be positive, got %d", a.Kind, a.NumFeaturesIn)
	}
	return a, nil
}

func (a Artifact) params(v interface{}) error {
	if len(a.Params) == 0 {
		return invalidArtifact("%s: missing params", a.Kind)
	}
	if err := json.Unmarshal(a.Params, v); err != nil {
		return invalidArtifact("%s: decode params: %v", a.Kind, err)
	}
	return nil
}

func encodeArtifact(kind string, numFeatures int, params interface{}) ([]byte, error) {
	a := Artifact{Kind: kind, NumFeaturesIn: numFeatures}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", kind, err)
		}
		a.Params = raw
	}
	return json.MarshalIndent(a, "", "  ")
}

func checkWidth(a Artifact, got int) error {
	if got != a.NumFeaturesIn {
		return invalidArtifact("%s: params describe %d features, n_features_in is %d", a.Kind, got, a.NumFeaturesIn)
	}
	return nil
}

func orDefault(values []float64, n int, fill float64) []float64 {
	if values != nil {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = fill
	}
	return out
}

func enabled(v *bool) bool {
	return v == nil || *v
}

func boolPtr(v bool) *bool {
	return &v
}

func treesFrom(kind string, raw [][]TreeNode, numFeatures int) ([]*DecisionTree, error) {
	trees := make([]*DecisionTree, 0, len(raw))
	for i, nodes := range raw {
		tree, err := NewDecisionTree(nodes, numFeatures)
		if err != nil {
			return nil, fmt.Errorf("%s tree %d: %w", kind, i, err)
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

func treeNodes(trees []*DecisionTree) [][]TreeNode {
	out := make([][]TreeNode, len(trees))
	for i, tree := range trees {
		out[i] = tree.Nodes()
	}
	return out
}
