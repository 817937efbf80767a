package elasticnet

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaPathIsGeometric(t *testing.T) {
	path, err := LambdaPath(2, 5, 1e-4)
	require.NoError(t, err)
	require.Len(t, path, 5)
	assert.Equal(t, 2.0, path[0])
	assert.InDelta(t, 2e-4, path[4], 1e-18)
	for i := 1; i < len(path); i++ {
		assert.Less(t, path[i], path[i-1])
		assert.InDelta(t, 0.1, path[i]/path[i-1], 1e-12)
	}

	single, err := LambdaPath(3, 1, 0.01)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, single)

	_, err = LambdaPath(1, 0, 0.01)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LambdaPath(1, 10, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LambdaPath(math.NaN(), 10, 0.1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLambdaMaxUnitWeights(t *testing.T) {
	x, y := linearData(17, 40, []float64{0.4, -1.1, 0.2}, 0.5, 0.3)
	_, xs, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	ybar := d.TargetMean()
	var want float64
	for j := 0; j < 3; j++ {
		var g float64
		for i := 0; i < 40; i++ {
			g += xs.At(i, j) * (y[i] - ybar)
		}
		want = math.Max(want, math.Abs(g)/40)
	}
	assert.InDelta(t, want, LambdaMax(d, 1), 1e-12)
	assert.InDelta(t, want/0.5, LambdaMax(d, 0.5), 1e-12)
}

func TestL1NormGrowsAlongPath(t *testing.T) {
	x, y := linearData(23, 150, []float64{1.2, 0, -0.7, 0, 0.4, 0, 0, 0.2, 0, -0.1}, 0, 0.6)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	lambdas, err := LambdaPath(LambdaMax(d, 1), 40, 1e-4)
	require.NoError(t, err)
	s, err := NewSolver(d, 1, 1e-12, 10000)
	require.NoError(t, err)
	path, err := SolvePath(context.Background(), s, lambdas)
	require.NoError(t, err)
	require.Len(t, path.Fits, 40)
	require.Empty(t, path.NonConverged)

	assert.Zero(t, path.Fits[0].ActiveCount())
	for i := 1; i < len(path.Fits); i++ {
		assert.GreaterOrEqual(t, path.Fits[i].L1(), path.Fits[i-1].L1()-1e-8, "step %d", i)
		assert.GreaterOrEqual(t, path.Fits[i].Explained, path.Fits[i-1].Explained-1e-8, "step %d", i)
	}
	assert.Len(t, path.Betas(), 40)
}

func TestSolvePathHonoursCancellation(t *testing.T) {
	x, y := linearData(29, 50, []float64{1, 1}, 0, 0.1)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)
	s, err := NewSolver(d, 1, 1e-9, 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = SolvePath(ctx, s, []float64{1, 0.5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolvePathRecordsNonConvergence(t *testing.T) {
	x, y := linearData(31, 60, []float64{1, 0.9, 0.8}, 0, 0.1)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)
	s, err := NewSolver(d, 1, 1e-15, 2)
	require.NoError(t, err)

	lambdas, err := LambdaPath(LambdaMax(d, 1), 5, 1e-3)
	require.NoError(t, err)
	path, err := SolvePath(context.Background(), s, lambdas)
	require.NoError(t, err)
	require.Len(t, path.Fits, 5)
	assert.NotEmpty(t, path.NonConverged)
	assert.Len(t, path.Warnings, len(path.NonConverged))
	for _, w := range path.Warnings {
		assert.ErrorIs(t, w, ErrNonConvergence)
	}
}
