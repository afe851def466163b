package hpo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRBFKernel(t *testing.T) {
	assert.Equal(t, 1.0, RBFKernel([]float64{1, 2}, []float64{1, 2}, 0.5))
	assert.InDelta(t, math.Exp(-0.5), RBFKernel([]float64{0}, []float64{1}, 1), 1e-12)
	assert.Less(t, RBFKernel([]float64{0}, []float64{1}, 0.1), RBFKernel([]float64{0}, []float64{1}, 1))

	assert.Panics(t, func() { RBFKernel([]float64{0}, []float64{0, 1}, 1) })
}

func TestGaussianProcessInterpolates(t *testing.T) {
	X := make([][]float64, 0, 10)
	y := make([]float64, 0, 10)

	for i := 0; i < 10; i++ {
		x := float64(i) / 9
		X = append(X, []float64{x})
		y = append(y, math.Sin(2*math.Pi*x))
	}

	gp := &GaussianProcess{LengthScales: []float64{0.2}, Alpha: 1e-10}
	require.NoError(t, gp.Fit(X, y))

	mean, std, err := gp.Predict(X)
	require.NoError(t, err)

	for i := range X {
		assert.InDelta(t, y[i], mean[i], 1e-3)
		assert.Less(t, std[i], 1e-2)
	}

	// Between two training points the prediction follows the curve.
	mean, _, err = gp.Predict([][]float64{{0.5 / 9}})
	require.NoError(t, err)
	assert.InDelta(t, math.Sin(2*math.Pi*0.5/9), mean[0], 0.1)

	// Far outside the data the model is uncertain and reverts to the mean.
	mean, std, err = gp.Predict([][]float64{{10}})
	require.NoError(t, err)
	assert.Greater(t, std[0], 0.1)
	assert.InDelta(t, 0, mean[0], 0.1)
}

func TestGaussianProcessSelectsLengthScale(t *testing.T) {
	X := [][]float64{{0}, {0.2}, {0.4}, {0.6}, {0.8}, {1}}
	y := []float64{0, 0.5, 0.9, 0.9, 0.5, 0}

	gp := NewGaussianProcess()
	require.NoError(t, gp.Fit(X, y))

	assert.Contains(t, DefaultLengthScales, gp.LengthScale())

	mean, std, err := gp.Predict(X)
	require.NoError(t, err)

	assert.Greater(t, mean[2], mean[0])
	assert.Greater(t, mean[3], mean[5])

	for i := range std {
		assert.False(t, math.IsNaN(std[i]))
	}
}

func TestGaussianProcessUnfitted(t *testing.T) {
	mean, std, err := NewGaussianProcess().Predict([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0}, mean)
	assert.Equal(t, []float64{1, 1}, std)
	assert.Equal(t, 0.0, NewGaussianProcess().LengthScale())
}

func TestGaussianProcessDuplicateRows(t *testing.T) {
	X := [][]float64{{0, 1}, {0, 1}, {1, 0}, {1, 0}}
	y := []float64{0.2, 0.2, 0.8, 0.8}

	gp := NewGaussianProcess()
	require.NoError(t, gp.Fit(X, y))

	mean, std, err := gp.Predict(X)
	require.NoError(t, err)

	for i := range X {
		assert.InDelta(t, y[i], mean[i], 1e-2)
		assert.False(t, math.IsNaN(std[i]))
	}
}

func TestGaussianProcessConstantTargets(t *testing.T) {
	gp := NewGaussianProcess()
	require.NoError(t, gp.Fit([][]float64{{0}, {0.5}, {1}}, []float64{3, 3, 3}))

	mean, std, err := gp.Predict([][]float64{{0.25}})
	require.NoError(t, err)

	assert.InDelta(t, 3, mean[0], 1e-9)
	assert.Equal(t, 0.0, std[0])
}

func TestGaussianProcessShapeErrors(t *testing.T) {
	gp := NewGaussianProcess()

	assert.Error(t, gp.Fit(nil, nil))
	assert.Error(t, gp.Fit([][]float64{{1}}, []float64{1, 2}))
	assert.Error(t, gp.Fit([][]float64{{1}, {1, 2}}, []float64{1, 2}))

	require.NoError(t, gp.Fit([][]float64{{0, 0}, {1, 1}}, []float64{0, 1}))

	_, _, err := gp.Predict([][]float64{{1}})
	assert.Error(t, err)
}

func TestGaussianProcessFixedLengthScale(t *testing.T) {
	gp := &GaussianProcess{LengthScales: []float64{0.3}}
	require.NoError(t, gp.Fit([][]float64{{0}, {1}, {2}}, []float64{1, 0, 1}))

	assert.Equal(t, 0.3, gp.LengthScale())
}
