package ml

import (
	"fmt"
	"os"
)

func LoadScaler(path string) (Scaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	s, err := DecodeScaler(payload)
	if err != nil {
		return nil, fmt.Errorf("load scaler %s: %w", path, err)
	}
	return s, nil
}

func LoadRegressor(path string) (Regressor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	r, err := DecodeRegressor(payload)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return r, nil
}

func DecodeScaler(payload []byte) (Scaler, error) {
	a, err := decodeArtifact(payload)
	if err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindIdentity:
		return asScaler(NewIdentityScaler(a.NumFeaturesIn))
	case KindStandardScaler:
		var p standardScalerParams
		if len(a.Params) > 0 {
			if err := a.params(&p); err != nil {
				return nil, err
			}
		}
		mean := orDefault(p.Mean, a.NumFeaturesIn, 0)
		scale := orDefault(p.Scale, a.NumFeaturesIn, 1)
		if err := checkWidth(a, len(mean)); err != nil {
			return nil, err
		}
		return asScaler(NewStandardScaler(mean, scale, enabled(p.WithMean), enabled(p.WithStd)))
	case KindMinMaxScaler:
		var p minMaxScalerParams
		if err := a.params(&p); err != nil {
			return nil, err
		}
		if err := checkWidth(a, len(p.Min)); err != nil {
			return nil, err
		}
		return asScaler(NewMinMaxScaler(p.Min, p.Scale))
	case KindRobustScaler:
		var p robustScalerParams
		if len(a.Params) > 0 {
			if err := a.params(&p); err != nil {
				return nil, err
			}
		}
		center := orDefault(p.Center, a.NumFeaturesIn, 0)
		scale := orDefault(p.Scale, a.NumFeaturesIn, 1)
		if err := checkWidth(a, len(center)); err != nil {
			return nil, err
		}
		return asScaler(NewRobustScaler(center, scale, enabled(p.WithCentering), enabled(p.WithScaling)))
	default:
		return nil, fmt.Errorf("%w: scaler %q", ErrUnsupportedKind, a.Kind)
	}
}

func DecodeRegressor(payload []byte) (Regressor, error) {
	a, err := decodeArtifact(payload)
	if err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindConstant:
		var p constantParams
		if err := a.params(&p); err != nil {
			return nil, err
		}
		return asRegressor(NewConstantRegressor(p.Value, a.NumFeaturesIn))
	case KindLinear:
		var p linearParams
		if err := a.params(&p); err != nil {
			return nil, err
		}
		if err := checkWidth(a, len(p.Coef)); err != nil {
			return nil, err
		}
		return asRegressor(NewLinearRegressor(p.Coef, p.Intercept))
	case KindDecisionTree:
		var p treeParams
		if err := a.params(&p); err != nil {
			return nil, err
		}
		return asRegressor(NewDecisionTree(p.Nodes, a.NumFeaturesIn))
	case KindRandomForest:
		var p forestParams
		if err := a.params(&p); err != nil {
			return nil, err
		}
		trees, err := treesFrom(a.Kind, p.Trees, a.NumFeaturesIn)
		if err != nil {
			return nil, err
		}
		return asRegressor(NewRandomForest(trees))
	case KindGradientBoosting:
		var p boostingParams
		if err := a.params(&p); err != nil {
			return nil, err
		}
		trees, err := treesFrom(a.Kind, p.Trees, a.NumFeaturesIn)
		if err != nil {
			return nil, err
		}
		return asRegressor(NewGradientBoosting(p.Init, p.LearningRate, trees))
	default:
		return nil, fmt.Errorf("%w: model %q", ErrUnsupportedKind, a.Kind)
	}
}

func EncodeScaler(s Scaler) ([]byte, error) {
	switch v := s.(type) {
	case *IdentityScaler:
		return encodeArtifact(v.Kind(), v.n, nil)
	case *StandardScaler:
		return encodeArtifact(v.Kind(), v.NumFeatures(), standardScalerParams{
			Mean:     rawVector(v.mean),
			Scale:    rawVector(v.scale),
			WithMean: boolPtr(v.withMean),
			WithStd:  boolPtr(v.withStd),
		})
	case *MinMaxScaler:
		return encodeArtifact(v.Kind(), v.NumFeatures(), minMaxScalerParams{
			Min:   rawVector(v.min),
			Scale: rawVector(v.scale),
		})
	case *RobustScaler:
		return encodeArtifact(v.Kind(), v.NumFeatures(), robustScalerParams{
			Center:        rawVector(v.center),
			Scale:         rawVector(v.scale),
			WithCentering: boolPtr(v.withCentering),
			WithScaling:   boolPtr(v.withScaling),
		})
	default:
		return nil, fmt.Errorf("%w: cannot encode scaler %T", ErrUnsupportedKind, s)
	}
}

func EncodeRegressor(r Regressor) ([]byte, error) {
	switch v := r.(type) {
	case *ConstantRegressor:
		return encodeArtifact(v.Kind(), v.n, constantParams{Value: v.value})
	case *LinearRegressor:
		return encodeArtifact(v.Kind(), v.NumFeatures(), linearParams{Coef: v.Coef(), Intercept: v.intercept})
	case *DecisionTree:
		return encodeArtifact(v.Kind(), v.n, treeParams{Nodes: v.Nodes()})
	case *RandomForest:
		return encodeArtifact(v.Kind(), v.n, forestParams{Trees: treeNodes(v.trees)})
	case *GradientBoosting:
		return encodeArtifact(v.Kind(), v.n, boostingParams{
			Init:         v.init,
			LearningRate: v.learningRate,
			Trees:        treeNodes(v.trees),
		})
	default:
		return nil, fmt.Errorf("%w: cannot encode model %T", ErrUnsupportedKind, r)
	}
}

func SaveScaler(path string, s Scaler) error {
	payload, err := EncodeScaler(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func SaveRegressor(path string, r Regressor) error {
	payload, err := EncodeRegressor(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// asScaler and asRegressor keep a failed constructor's typed nil out of the
// returned interface.
func asScaler[T Scaler](s T, err error) (Scaler, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func asRegressor[T Regressor](r T, err error) (Regressor, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
