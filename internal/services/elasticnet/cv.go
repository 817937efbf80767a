package elasticnet

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FoldResult holds out-of-sample explained variance for each lambda of one fold.
type FoldResult struct {
	Fold         Fold      `json:"fold"`
	Scores       []float64 `json:"scores"`
	NonConverged []int     `json:"non_converged,omitempty"`
	Warnings     []error   `json:"-"`
}

// CVSummary aggregates fold results and records the selected lambda.
type CVSummary struct {
	Lambdas    []float64    `json:"lambdas"`
	MeanScores []float64    `json:"mean_scores"`
	Folds      []FoldResult `json:"folds"`
	BestIndex  int          `json:"best_index"`
	BestLambda float64      `json:"best_lambda"`
	BestScore  float64      `json:"best_score"`
}

// Warnings collects non-fatal errors from every fold, in fold order.
func (s *CVSummary) Warnings() []error {
	var out []error
	for _, f := range s.Folds {
		out = append(out, f.Warnings...)
	}
	return out
}

// CrossValidate scores every lambda with blocked k-fold validation. The lambda path
// is fixed by the caller so that scores line up across folds. Fold jobs share x, y
// and weights read-only and run on at most cfg.Workers goroutines.
func CrossValidate(ctx context.Context, x mat.Matrix, y, weights []float64, lambdas []float64, cfg Config, buffer int) (*CVSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(lambdas) == 0 {
		return nil, fmt.Errorf("%w: empty lambda path", ErrInvalidConfig)
	}
	n, _ := x.Dims()
	folds, err := BlockedFolds(n, cfg.NFolds, buffer)
	if err != nil {
		return nil, err
	}

	results := make([]FoldResult, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i := range folds {
		fold := folds[i]
		g.Go(func() error {
			res, err := runFold(gctx, x, y, weights, lambdas, cfg, fold)
			if err != nil {
				return fmt.Errorf("fold %d: %w", fold.Index, err)
			}
			results[fold.Index] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	means := make([]float64, len(lambdas))
	for _, r := range results {
		floats.Add(means, r.Scores)
	}
	floats.Scale(1/float64(len(results)), means)

	best := SelectLambda(means, cfg.TieBreak, cfg.TieTolerance)
	return &CVSummary{
		Lambdas:    append([]float64(nil), lambdas...),
		MeanScores: means,
		Folds:      results,
		BestIndex:  best,
		BestLambda: lambdas[best],
		BestScore:  means[best],
	}, nil
}

func runFold(ctx context.Context, x mat.Matrix, y, weights, lambdas []float64, cfg Config, fold Fold) (*FoldResult, error) {
	d, err := NewDesignRows(x, y, weights, fold.Train)
	if err != nil {
		return nil, err
	}
	solver, err := NewSolver(d, cfg.Alpha, cfg.Tolerance, cfg.MaxIterations)
	if err != nil {
		return nil, err
	}
	path, err := SolvePath(ctx, solver, lambdas)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(lambdas))
	for k, fit := range path.Fits {
		scores[k] = heldOutScore(x, y, weights, fold, fit, d.TargetMean())
	}
	return &FoldResult{
		Fold:         fold,
		Scores:       scores,
		NonConverged: path.NonConverged,
		Warnings:     path.Warnings,
	}, nil
}

// heldOutScore is 1 - SSE/SST on the held-out block, with SST measured around
// the training mean so that a model no better than that mean scores at most 0.
func heldOutScore(x mat.Matrix, y, weights []float64, fold Fold, fit Fit, trainMean float64) float64 {
	var sse, sst float64
	for i := fold.TestStart; i < fold.TestEnd; i++ {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		pred := fit.Intercept
		for j, b := range fit.Beta {
			if b != 0 {
				pred += b * x.At(i, j)
			}
		}
		e := y[i] - pred
		c := y[i] - trainMean
		sse += w * e * e
		sst += w * c * c
	}
	if sst <= 0 {
		return 0
	}
	return 1 - sse/sst
}

// SelectLambda picks an index into scores. With TieBreakMax the highest score wins
// and exact ties go to the earlier (larger) lambda. With TieBreakSparsest the
// earliest lambda within tolerance of the best score wins. NaN scores are skipped.
func SelectLambda(scores []float64, policy string, tolerance float64) int {
	best := -1
	for i, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	if policy != TieBreakSparsest {
		return best
	}
	for i, s := range scores {
		if !math.IsNaN(s) && s >= scores[best]-tolerance {
			return i
		}
	}
	return best
}
