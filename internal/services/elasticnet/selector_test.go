package elasticnet

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"FinSelect/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type recordingObserver struct {
	paths, cvs, finals int
}

func (r *recordingObserver) ObservePath(int, int, time.Duration)              { r.paths++ }
func (r *recordingObserver) ObserveCrossValidation(*CVSummary, time.Duration) { r.cvs++ }
func (r *recordingObserver) ObserveFinal(*Model)                              { r.finals++ }

func TestSelectorRecoversSparseSignal(t *testing.T) {
	coef := make([]float64, 10)
	coef[0] = 2
	x, y := linearData(2024, 500, coef, 0, 0.25)

	cfg := Config{Alpha: 1, NFolds: 5}
	obs := &recordingObserver{}
	var buf bytes.Buffer
	s, err := NewSelector(cfg, WithObserver(obs), WithLogger(logger.NewWriter(&buf, zerolog.DebugLevel)))
	require.NoError(t, err)
	assert.Equal(t, PhaseUninitialized, s.Phase())

	require.NoError(t, s.Standardize(x, y, nil))
	assert.Equal(t, PhaseStandardized, s.Phase())

	path, err := s.TrainPath(context.Background())
	require.NoError(t, err)
	assert.Len(t, path.Fits, 50)
	assert.Equal(t, PhaseTraining, s.Phase())

	summary, err := s.CrossValidate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseCrossValidated, s.Phase())
	assert.Len(t, summary.Folds, 5)

	m, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, PhaseFinalized, s.Phase())

	raw, _ := m.RawCoefficients()
	require.Len(t, raw, 10)
	assert.InDelta(t, 2, raw[0], 0.1)
	for j := 1; j < 10; j++ {
		assert.Less(t, math.Abs(raw[j]), 0.05, "coefficient %d", j)
	}
	assert.Contains(t, m.ActiveSet(), 0)
	assert.Equal(t, summary.BestLambda, m.Lambda())
	assert.Equal(t, summary.BestScore, m.CVScore())
	assert.Greater(t, m.InSampleExplained(), 0.9)
	assert.True(t, m.Converged())

	assert.Equal(t, 1, obs.paths)
	assert.Equal(t, 1, obs.cvs)
	assert.Equal(t, 1, obs.finals)
	assert.Contains(t, buf.String(), "cross-validation complete")
}

func TestSelectorRejectsOutOfOrderCalls(t *testing.T) {
	x, y := linearData(3, 60, []float64{1, -1}, 0, 0.2)
	s, err := NewSelector(Config{Alpha: 0.5, NFolds: 3})
	require.NoError(t, err)

	_, err = s.TrainPath(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.CrossValidate(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Finalize()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.Standardize(x, y, nil))
	assert.ErrorIs(t, s.Standardize(x, y, nil), ErrInvalidTransition)
	_, err = s.CrossValidate(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.TrainPath(context.Background())
	require.NoError(t, err)
	_, err = s.CrossValidate(context.Background(), 1)
	require.NoError(t, err)
	_, err = s.Finalize()
	require.NoError(t, err)

	_, err = s.Finalize()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.TrainPath(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSelectorInsufficientData(t *testing.T) {
	x, y := linearData(4, 15, []float64{1}, 0, 0.1)
	s, err := NewSelector(Config{Alpha: 1, NFolds: 10})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Standardize(x, y, nil), ErrInsufficientData)
	assert.Equal(t, PhaseUninitialized, s.Phase())

	_, err = NewSelector(Config{Alpha: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFitIsReproducible(t *testing.T) {
	x, y := linearData(77, 240, []float64{0.5, 0, -0.4, 0, 0.3, 0}, 0.1, 0.5)
	cfg := Config{Alpha: 0.6, NFolds: 4, NLambdas: 25, Workers: 3}

	m1, err := FitModel(context.Background(), cfg, x, y, nil, 2)
	require.NoError(t, err)
	m2, err := FitModel(context.Background(), cfg, x, y, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, m1.Coefficients(), m2.Coefficients())
	assert.Equal(t, m1.Intercept(), m2.Intercept())
	assert.Equal(t, m1.Lambda(), m2.Lambda())
	assert.Equal(t, m1.CVScore(), m2.CVScore())
}

func TestModelPredictionAndSnapshot(t *testing.T) {
	x, y := linearData(88, 200, []float64{1, -0.5, 0}, 3, 0.3)
	m, err := FitModel(context.Background(), Config{Alpha: 1, NFolds: 4}, x, y, nil, 0)
	require.NoError(t, err)

	preds, err := m.PredictMatrix(x)
	require.NoError(t, err)
	row := make([]float64, 3)
	for _, i := range []int{0, 57, 199} {
		mat.Row(row, i, x)
		p, err := m.Predict(row)
		require.NoError(t, err)
		assert.InDelta(t, preds[i], p, 1e-12)
	}

	score, err := m.Score(x, y)
	require.NoError(t, err)
	assert.InDelta(t, m.InSampleExplained(), score, 1e-9)

	_, err = m.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Accessors hand out copies.
	c := m.Coefficients()
	c[0] = 42
	assert.NotEqual(t, 42.0, m.Coefficients()[0])

	snap := m.Snapshot()
	assert.Len(t, snap.Path, 50)
	assert.Equal(t, m.Lambda(), snap.Lambda)
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"raw_coefficients"`)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "cross_validated", PhaseCrossValidated.String())
	assert.Equal(t, "fitting", SolverFitting.String())
	assert.Equal(t, "Phase(9)", Phase(9).String())
}
