package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearRegressorPredict(t *testing.T) {
	model, err := NewLinearRegressor([]float64{0.5, -2, 1}, 3)
	require.NoError(t, err)

	y, err := model.Predict([]float64{2, 1, 4})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, y, 1e-12)
	assert.Equal(t, []float64{0.5, -2, 1}, model.Coef())
	assert.Equal(t, 3.0, model.Intercept())

	_, err = model.Predict([]float64{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLinearRegressorOverflow(t *testing.T) {
	model, err := NewLinearRegressor([]float64{math.MaxFloat64}, 0)
	require.NoError(t, err)
	_, err = model.Predict([]float64{10})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestConstantRegressor(t *testing.T) {
	model, err := NewConstantRegressor(42, 3)
	require.NoError(t, err)

	y, err := model.Predict([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 42.0, y)

	_, err = model.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewConstantRegressor(math.NaN(), 1)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
