package elasticnet

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSoftThreshold(t *testing.T) {
	assert.Equal(t, 1.5, SoftThreshold(2, 0.5))
	assert.Equal(t, -1.5, SoftThreshold(-2, 0.5))
	assert.Equal(t, 0.0, SoftThreshold(0.3, 0.5))
	assert.Equal(t, 0.0, SoftThreshold(-0.5, 0.5))
	assert.Equal(t, 0.0, SoftThreshold(0.5, 0.5))
}

func TestSolveAtLambdaMaxIsAllZero(t *testing.T) {
	x, y := linearData(1, 80, []float64{1, -0.5, 0, 0.25, 0}, 0.1, 0.3)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	for _, alpha := range []float64{1, 0.5, 0.25} {
		lmax := LambdaMax(d, alpha)
		require.Greater(t, lmax, 0.0)

		s, err := NewSolver(d, alpha, 1e-10, 1000)
		require.NoError(t, err)
		fit, err := s.Solve(lmax)
		require.NoError(t, err)
		assert.Zero(t, fit.ActiveCount(), "alpha=%g", alpha)
		assert.InDelta(t, d.TargetMean(), fit.Intercept, 1e-12)

		fit, err = s.Solve(lmax * 2)
		require.NoError(t, err)
		assert.Zero(t, fit.ActiveCount())

		fit, err = s.Solve(lmax * 0.9)
		require.NoError(t, err)
		assert.Positive(t, fit.ActiveCount(), "alpha=%g", alpha)
	}
}

func TestSolveApproachesOLS(t *testing.T) {
	x, y := linearData(7, 20, []float64{2, -1, 0.5}, 1, 0.2)
	_, xs, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	// Reference: least squares on [1 | xs].
	a := mat.NewDense(20, 4, nil)
	for i := 0; i < 20; i++ {
		a.Set(i, 0, 1)
		for j := 0; j < 3; j++ {
			a.Set(i, j+1, xs.At(i, j))
		}
	}
	var ols mat.VecDense
	require.NoError(t, ols.SolveVec(a, mat.NewVecDense(20, y)))

	s, err := NewSolver(d, 1, 1e-13, 100000)
	require.NoError(t, err)
	fit, err := s.Solve(LambdaMax(d, 1) * 1e-10)
	require.NoError(t, err)
	require.True(t, fit.Converged)

	assert.InDelta(t, ols.AtVec(0), fit.Intercept, 1e-6)
	for j := 0; j < 3; j++ {
		assert.InDelta(t, ols.AtVec(j+1), fit.Beta[j], 1e-6, "beta[%d]", j)
	}
}

func TestWarmStartMatchesColdStart(t *testing.T) {
	x, y := linearData(11, 120, []float64{1, 0.8, 0, 0, -0.6, 0, 0.3, 0}, 0, 0.5)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	lambdas, err := LambdaPath(LambdaMax(d, 0.7), 20, 1e-3)
	require.NoError(t, err)

	warm, err := NewSolver(d, 0.7, 1e-11, 10000)
	require.NoError(t, err)
	path, err := SolvePath(t.Context(), warm, lambdas)
	require.NoError(t, err)
	require.Empty(t, path.NonConverged)

	for _, k := range []int{5, 12, 19} {
		cold, err := NewSolver(d, 0.7, 1e-11, 10000)
		require.NoError(t, err)
		fit, err := cold.Solve(lambdas[k])
		require.NoError(t, err)
		for j := range fit.Beta {
			assert.InDelta(t, fit.Beta[j], path.Fits[k].Beta[j], 1e-6, "lambda[%d] beta[%d]", k, j)
		}
		assert.InDelta(t, fit.Intercept, path.Fits[k].Intercept, 1e-6)
	}
}

func TestWarmStartInstallsCoefficients(t *testing.T) {
	x, y := linearData(3, 40, []float64{1, -1}, 0, 0.1)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	s, err := NewSolver(d, 1, 1e-10, 1000)
	require.NoError(t, err)
	assert.Equal(t, SolverUnfit, s.Phase())

	require.ErrorIs(t, s.WarmStart([]float64{1}), ErrInvalidInput)
	require.ErrorIs(t, s.WarmStart([]float64{1, math.NaN()}), ErrInvalidInput)
	require.NoError(t, s.WarmStart([]float64{0.5, -0.5}))
	assert.Equal(t, []float64{0.5, -0.5}, s.Beta())

	_, err = s.Solve(0.01)
	require.NoError(t, err)
	assert.Equal(t, SolverFit, s.Phase())
}

func TestSolveBudgetExhaustionReturnsBestEffort(t *testing.T) {
	x, y := linearData(5, 60, []float64{1, 0.9, 0.8, 0.7}, 0, 0.1)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	s, err := NewSolver(d, 1, 1e-15, 1)
	require.NoError(t, err)
	fit, err := s.Solve(LambdaMax(d, 1) * 0.01)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonConvergence)
	assert.True(t, IsWarning(err))

	var nc *NonConvergenceError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, -1, nc.Coordinate)
	assert.Equal(t, 1, nc.Iterations)

	assert.False(t, fit.Converged)
	assert.Positive(t, fit.ActiveCount())
	for _, b := range fit.Beta {
		assert.False(t, math.IsNaN(b))
	}
}

func TestSolveNonFiniteUpdateIsReported(t *testing.T) {
	// The huge column overflows its sum of squares, so its first update is NaN.
	x := mat.NewDense(6, 2, []float64{
		1e200, 0.5,
		-1e200, -0.2,
		1e200, 0.9,
		-1e200, -0.7,
		1e200, 0.1,
		-1e200, -0.4,
	})
	y := []float64{0.6, -0.1, 1.0, -0.8, 0.2, -0.5}
	d, err := NewDesign(x, y, nil)
	require.NoError(t, err)

	s, err := NewSolver(d, 1, 1e-9, 100)
	require.NoError(t, err)
	fit, err := s.Solve(0.01)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonConvergence)

	var nc *NonConvergenceError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, 0, nc.Coordinate)
	assert.Equal(t, 1, nc.Iterations)
	assert.Contains(t, nc.Error(), "coordinate 0")

	// The sweep is rolled back to the coefficients it started from.
	assert.False(t, fit.Converged)
	assert.Equal(t, []float64{0, 0}, fit.Beta)
	assert.Equal(t, []float64{0, 0}, s.Beta())
}

func TestSolveRejectsBadLambda(t *testing.T) {
	x, y := linearData(5, 30, []float64{1}, 0, 0.1)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)
	s, err := NewSolver(d, 1, 1e-9, 100)
	require.NoError(t, err)

	_, err = s.Solve(-1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = s.Solve(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewSolverValidatesParameters(t *testing.T) {
	x, y := linearData(5, 30, []float64{1}, 0, 0.1)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	_, err = NewSolver(d, 0, 1e-9, 100)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSolver(d, 1.2, 1e-9, 100)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSolver(d, 1, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSolver(d, 1, 1e-9, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInterceptOnlyProblem(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	d, err := NewDesign(Empty(4), y, nil)
	require.NoError(t, err)
	assert.Zero(t, LambdaMax(d, 1))

	s, err := NewSolver(d, 1, 1e-9, 10)
	require.NoError(t, err)
	fit, err := s.Solve(0)
	require.NoError(t, err)
	assert.True(t, fit.Converged)
	assert.Empty(t, fit.Beta)
	assert.InDelta(t, 2.5, fit.Intercept, 1e-12)
	assert.InDelta(t, 0, fit.Explained, 1e-12)
}

func TestDegenerateColumnStaysZero(t *testing.T) {
	x, y := linearData(9, 50, []float64{1, 0}, 0, 0.1)
	for i := 0; i < 50; i++ {
		x.Set(i, 1, 3.0)
	}
	std, xs, d, err := standardizedDesign(x, y)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, std.Degenerate())
	assert.ErrorIs(t, std.Warning(), ErrDegenerateColumn)
	assert.Equal(t, 0.0, xs.At(0, 1))

	s, err := NewSolver(d, 1, 1e-10, 1000)
	require.NoError(t, err)
	fit, err := s.Solve(LambdaMax(d, 1) * 1e-4)
	require.NoError(t, err)
	assert.NotZero(t, fit.Beta[0])
	assert.Zero(t, fit.Beta[1])
}

func TestWeightedDesignMatchesReplicatedRows(t *testing.T) {
	x, y := linearData(21, 30, []float64{1, -0.5, 0.2}, 0.3, 0.4)
	weights := make([]float64, 30)
	var rows []int
	for i := range weights {
		weights[i] = float64(1 + i%3)
		for k := 0; k < 1+i%3; k++ {
			rows = append(rows, i)
		}
	}

	wd, err := NewDesign(x, y, weights)
	require.NoError(t, err)
	rd, err := NewDesignRows(x, y, nil, rows)
	require.NoError(t, err)

	lambda := LambdaMax(wd, 0.5) * 0.05
	assert.InDelta(t, LambdaMax(rd, 0.5), LambdaMax(wd, 0.5), 1e-12)

	ws, err := NewSolver(wd, 0.5, 1e-12, 10000)
	require.NoError(t, err)
	rs, err := NewSolver(rd, 0.5, 1e-12, 10000)
	require.NoError(t, err)
	wf, err := ws.Solve(lambda)
	require.NoError(t, err)
	rf, err := rs.Solve(lambda)
	require.NoError(t, err)

	for j := range wf.Beta {
		assert.InDelta(t, rf.Beta[j], wf.Beta[j], 1e-8)
	}
	assert.InDelta(t, rf.Intercept, wf.Intercept, 1e-8)
}

func TestNewDesignRejectsBadInput(t *testing.T) {
	x, y := linearData(2, 10, []float64{1}, 0, 0.1)

	_, err := NewDesign(x, y[:9], nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	w := make([]float64, 10)
	_, err = NewDesign(x, y, w)
	assert.ErrorIs(t, err, ErrInvalidInput)

	w[0] = -1
	_, err = NewDesign(x, y, w)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewDesignRows(x, y, nil, []int{3})
	assert.ErrorIs(t, err, ErrInsufficientData)

	y[4] = math.Inf(1)
	_, err = NewDesign(x, y, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSolveIsDeterministic(t *testing.T) {
	x, y := linearData(13, 100, []float64{0.5, 0.5, -0.2, 0, 0.1}, 0, 0.3)
	_, _, d, err := standardizedDesign(x, y)
	require.NoError(t, err)
	lambda := LambdaMax(d, 0.9) * 0.02

	var first []float64
	for k := 0; k < 3; k++ {
		s, err := NewSolver(d, 0.9, 1e-9, 1000)
		require.NoError(t, err)
		fit, err := s.Solve(lambda)
		require.NoError(t, err)
		if first == nil {
			first = fit.Beta
			continue
		}
		assert.Equal(t, first, fit.Beta)
	}
}
