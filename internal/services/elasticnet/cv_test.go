package elasticnet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectLambda(t *testing.T) {
	scores := []float64{0.1, 0.3, 0.3, 0.2}
	assert.Equal(t, 1, SelectLambda(scores, TieBreakMax, 0))
	assert.Equal(t, 1, SelectLambda(scores, TieBreakSparsest, 0.1))

	near := []float64{0.25, 0.3, 0.29}
	assert.Equal(t, 1, SelectLambda(near, TieBreakMax, 0.06))
	assert.Equal(t, 0, SelectLambda(near, TieBreakSparsest, 0.06))
	assert.Equal(t, 1, SelectLambda(near, TieBreakSparsest, 0.001))
}

func TestCrossValidateScoresEveryLambda(t *testing.T) {
	x, y := linearData(41, 300, []float64{1, 0, 0, -0.5, 0}, 0, 0.5)
	_, xs, d, err := standardizedDesign(x, y)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.NFolds = 5
	cfg.Workers = 2
	lambdas, err := LambdaPath(LambdaMax(d, cfg.Alpha), 15, 1e-3)
	require.NoError(t, err)

	summary, err := CrossValidate(context.Background(), xs, y, nil, lambdas, cfg, 3)
	require.NoError(t, err)
	require.Len(t, summary.Folds, 5)
	require.Len(t, summary.MeanScores, 15)

	for i, f := range summary.Folds {
		assert.Equal(t, i, f.Fold.Index)
		require.Len(t, f.Scores, 15)
		assert.Equal(t, 60, f.Fold.TestRows())
	}
	for k := range lambdas {
		var sum float64
		for _, f := range summary.Folds {
			sum += f.Scores[k]
		}
		assert.InDelta(t, sum/5, summary.MeanScores[k], 1e-12)
	}

	assert.Greater(t, summary.BestIndex, 0)
	assert.Equal(t, lambdas[summary.BestIndex], summary.BestLambda)
	assert.Equal(t, summary.MeanScores[summary.BestIndex], summary.BestScore)
	assert.Greater(t, summary.BestScore, 0.5)
}

func TestCrossValidateWorkerCountDoesNotChangeResult(t *testing.T) {
	x, y := linearData(43, 200, []float64{0.7, -0.3, 0.1}, 0.2, 0.4)
	_, xs, d, err := standardizedDesign(x, y)
	require.NoError(t, err)
	lambdas, err := LambdaPath(LambdaMax(d, 0.5), 10, 1e-3)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Alpha = 0.5
	cfg.NFolds = 4

	cfg.Workers = 1
	serial, err := CrossValidate(context.Background(), xs, y, nil, lambdas, cfg, 2)
	require.NoError(t, err)
	cfg.Workers = 4
	parallel, err := CrossValidate(context.Background(), xs, y, nil, lambdas, cfg, 2)
	require.NoError(t, err)

	assert.Equal(t, serial.MeanScores, parallel.MeanScores)
	assert.Equal(t, serial.BestIndex, parallel.BestIndex)
}

func TestCrossValidateErrors(t *testing.T) {
	x, y := linearData(47, 30, []float64{1}, 0, 0.1)
	cfg := DefaultConfig()
	cfg.NFolds = 3

	_, err := CrossValidate(context.Background(), x, y, nil, nil, cfg, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = CrossValidate(context.Background(), x, y, nil, []float64{0.1}, cfg, 20)
	assert.ErrorIs(t, err, ErrInsufficientData)

	bad := cfg
	bad.Alpha = 0
	_, err = CrossValidate(context.Background(), x, y, nil, []float64{0.1}, bad, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
