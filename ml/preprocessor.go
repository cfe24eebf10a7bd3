package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	KindIdentity       = "identity"
	KindStandardScaler = "standard_scaler"
	KindMinMaxScaler   = "minmax_scaler"
	KindRobustScaler   = "robust_scaler"
)

// IdentityScaler passes features through unchanged. It still enforces the
// fitted feature count so that a misconfigured pair fails the same way.
type IdentityScaler struct {
	n int
}

func NewIdentityScaler(numFeatures int) (*IdentityScaler, error) {
	if numFeatures <= 0 {
		return nil, invalidArtifact("identity scaler needs a positive feature count")
	}
	return &IdentityScaler{n: numFeatures}, nil
}

func (s *IdentityScaler) Transform(features []float64) ([]float64, error) {
	if err := checkDimension(features, s.n); err != nil {
		return nil, err
	}
	return append([]float64(nil), features...), nil
}

func (s *IdentityScaler) NumFeatures() int { return s.n }
func (s *IdentityScaler) Kind() string     { return KindIdentity }

// StandardScaler computes (x - mean) / scale.
type StandardScaler struct {
	mean     *mat.VecDense
	scale    *mat.VecDense
	withMean bool
	withStd  bool
}

func NewStandardScaler(mean, scale []float64, withMean, withStd bool) (*StandardScaler, error) {
	center, spread, err := centerAndSpread(KindStandardScaler, mean, scale)
	if err != nil {
		return nil, err
	}
	return &StandardScaler{mean: center, scale: spread, withMean: withMean, withStd: withStd}, nil
}

func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if err := checkDimension(features, s.NumFeatures()); err != nil {
		return nil, err
	}
	x := vector(features)
	if s.withMean {
		x.SubVec(x, s.mean)
	}
	if s.withStd {
		x.DivElemVec(x, s.scale)
	}
	return finiteData(x)
}

func (s *StandardScaler) NumFeatures() int { return s.mean.Len() }
func (s *StandardScaler) Kind() string     { return KindStandardScaler }

// MinMaxScaler computes x * scale + min, using the fitted scale_ and min_
// attributes rather than the raw data range.
type MinMaxScaler struct {
	min   *mat.VecDense
	scale *mat.VecDense
}

func NewMinMaxScaler(min, scale []float64) (*MinMaxScaler, error) {
	if len(min) == 0 {
		return nil, invalidArtifact("%s: empty min", KindMinMaxScaler)
	}
	if len(min) != len(scale) {
		return nil, invalidArtifact("%s: min has %d entries, scale has %d", KindMinMaxScaler, len(min), len(scale))
	}
	if err := allFinite(min); err != nil {
		return nil, invalidArtifact("%s: min: %v", KindMinMaxScaler, err)
	}
	if err := allFinite(scale); err != nil {
		return nil, invalidArtifact("%s: scale: %v", KindMinMaxScaler, err)
	}
	return &MinMaxScaler{min: vector(min), scale: vector(scale)}, nil
}

func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if err := checkDimension(features, s.NumFeatures()); err != nil {
		return nil, err
	}
	x := vector(features)
	x.MulElemVec(x, s.scale)
	x.AddVec(x, s.min)
	return finiteData(x)
}

func (s *MinMaxScaler) NumFeatures() int { return s.min.Len() }
func (s *MinMaxScaler) Kind() string     { return KindMinMaxScaler }

// RobustScaler computes (x - center) / scale with median/IQR statistics.
type RobustScaler struct {
	center        *mat.VecDense
	scale         *mat.VecDense
	withCentering bool
	withScaling   bool
}

func NewRobustScaler(center, scale []float64, withCentering, withScaling bool) (*RobustScaler, error) {
	c, s, err := centerAndSpread(KindRobustScaler, center, scale)
	if err != nil {
		return nil, err
	}
	return &RobustScaler{center: c, scale: s, withCentering: withCentering, withScaling: withScaling}, nil
}

func (s *RobustScaler) Transform(features []float64) ([]float64, error) {
	if err := checkDimension(features, s.NumFeatures()); err != nil {
		return nil, err
	}
	x := vector(features)
	if s.withCentering {
		x.SubVec(x, s.center)
	}
	if s.withScaling {
		x.DivElemVec(x, s.scale)
	}
	return finiteData(x)
}

func (s *RobustScaler) NumFeatures() int { return s.center.Len() }
func (s *RobustScaler) Kind() string     { return KindRobustScaler }

// centerAndSpread validates a location/scale pair. A zero scale entry means a
// constant feature during fitting and is replaced by 1.
func centerAndSpread(kind string, center, scale []float64) (*mat.VecDense, *mat.VecDense, error) {
	if len(center) == 0 {
		return nil, nil, invalidArtifact("%s: empty center", kind)
	}
	if len(center) != len(scale) {
		return nil, nil, invalidArtifact("%s: center has %d entries, scale has %d", kind, len(center), len(scale))
	}
	if err := allFinite(center); err != nil {
		return nil, nil, invalidArtifact("%s: center: %v", kind, err)
	}
	if err := allFinite(scale); err != nil {
		return nil, nil, invalidArtifact("%s: scale: %v", kind, err)
	}
	spread := make([]float64, len(scale))
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		spread[i] = v
	}
	return vector(center), vector(spread), nil
}

// vector copies values into a new VecDense so callers never alias the input.
func vector(values []float64) *mat.VecDense {
	return mat.NewVecDense(len(values), append([]float64(nil), values...))
}

func rawVector(v *mat.VecDense) []float64 {
	return mat.Col(nil, 0, v)
}

func finiteData(v *mat.VecDense) ([]float64, error) {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	if err := allFinite(out); err != nil {
		return nil, err
	}
	return out, nil
}

func allFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &nonFiniteError{index: i, value: v}
		}
	}
	return nil
}

type nonFiniteError struct {
	index int
	value float64
}

func (e *nonFiniteError) Error() string {
	return fmt.Sprintf("%v at index %d: %v", ErrNonFinite, e.index, e.value)
}

func (e *nonFiniteError) Is(target error) bool {
	return target == ErrNonFinite
}

// CheckFinite reports the first NaN or infinite entry of values.
func CheckFinite(values []float64) error {
	return allFinite(values)
}
