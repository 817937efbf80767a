package elasticnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStandardizationUsesPopulationMoments(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	std, err := FitStandardization(x)
	require.NoError(t, err)

	assert.Equal(t, []float64{2.5, 10}, std.Means())
	assert.InDelta(t, math.Sqrt(1.25), std.Scales()[0], 1e-12)
	assert.Equal(t, 0.0, std.Scales()[1])
	assert.Equal(t, []int{1}, std.Degenerate())

	xs, err := std.Transform(x)
	require.NoError(t, err)
	assert.InDelta(t, -1.5/math.Sqrt(1.25), xs.At(0, 0), 1e-12)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 0.0, xs.At(i, 1))
	}
}

func TestStandardizationAppliesTrainingMomentsToNewRows(t *testing.T) {
	train := mat.NewDense(3, 1, []float64{0, 2, 4})
	std, err := FitStandardization(train)
	require.NoError(t, err)

	test := mat.NewDense(2, 1, []float64{2, 10})
	xs, err := std.Transform(test)
	require.NoError(t, err)
	scale := math.Sqrt(8.0 / 3.0)
	assert.InDelta(t, 0, xs.At(0, 0), 1e-12)
	assert.InDelta(t, 8/scale, xs.At(1, 0), 1e-12)

	_, err = std.Transform(mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRawCoefficientsReproducePredictions(t *testing.T) {
	x, y := linearData(51, 60, []float64{0.3, -2, 0.9}, 4, 0.2)
	for i := 0; i < 60; i++ {
		x.Set(i, 2, 100+50*x.At(i, 2))
	}
	std, xs, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	s, err := NewSolver(d, 0.8, 1e-10, 1000)
	require.NoError(t, err)
	fit, err := s.Solve(LambdaMax(d, 0.8) * 0.01)
	require.NoError(t, err)

	raw, b0, err := std.RawCoefficients(fit.Beta, fit.Intercept)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		zPred, rawPred := fit.Intercept, b0
		for j := 0; j < 3; j++ {
			zPred += fit.Beta[j] * xs.At(i, j)
			rawPred += raw[j] * x.At(i, j)
		}
		assert.InDelta(t, zPred, rawPred, 1e-9, "row %d", i)
	}

	_, _, err = std.RawCoefficients([]float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFitStandardizationRejectsBadInput(t *testing.T) {
	_, err := FitStandardization(mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, ErrInsufficientData)

	x := mat.NewDense(3, 1, []float64{1, math.NaN(), 2})
	_, err = FitStandardization(x)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
