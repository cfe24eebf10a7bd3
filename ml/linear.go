package ml

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	KindConstant = "constant"
	KindLinear   = "linear"
)

// ConstantRegressor returns the same value for every sample of the right width.
type ConstantRegressor struct {
	value float64
	n     int
}

func NewConstantRegressor(value float64, numFeatures int) (*ConstantRegressor, error) {
	if numFeatures <= 0 {
		return nil, invalidArtifact("%s: needs a positive feature count", KindConstant)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, invalidArtifact("%s: value must be finite", KindConstant)
	}
	return &ConstantRegressor{value: value, n: numFeatures}, nil
}

func (r *ConstantRegressor) Predict(features []float64) (float64, error) {
	if err := checkDimension(features, r.n); err != nil {
		return 0, err
	}
	return r.value, nil
}

func (r *ConstantRegressor) NumFeatures() int { return r.n }
func (r *ConstantRegressor) Kind() string     { return KindConstant }

// LinearRegressor covers ordinary least squares and its penalised variants,
// which all predict coef . x + intercept.
type LinearRegressor struct {
	coef      *mat.VecDense
	intercept float64
}

func NewLinearRegressor(coef []float64, intercept float64) (*LinearRegressor, error) {
	if len(coef) == 0 {
		return nil, invalidArtifact("%s: empty coef", KindLinear)
	}
	if err := allFinite(coef); err != nil {
		return nil, invalidArtifact("%s: coef: %v", KindLinear, err)
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, invalidArtifact("%s: intercept must be finite", KindLinear)
	}
	return &LinearRegressor{coef: vector(coef), intercept: intercept}, nil
}

func (r *LinearRegressor) Predict(features []float64) (float64, error) {
	if err := checkDimension(features, r.NumFeatures()); err != nil {
		return 0, err
	}
	y := mat.Dot(r.coef, mat.NewVecDense(len(features), features)) + r.intercept
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, ErrNonFinite
	}
	return y, nil
}

func (r *LinearRegressor) NumFeatures() int { return r.coef.Len() }
func (r *LinearRegressor) Kind() string     { return KindLinear }

// Coef returns a copy of the fitted coefficients.
func (r *LinearRegressor) Coef() []float64 {
	return mat.Col(nil, 0, r.coef)
}

func (r *LinearRegressor) Intercept() float64 { return r.intercept }
