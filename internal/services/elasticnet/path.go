package elasticnet

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// LambdaMax is the smallest lambda at which every coefficient is zero:
// max_j |sum_i v_i x_ij y_i| / alpha with weights v summing to one.
func LambdaMax(d *Design, alpha float64) float64 {
	var m float64
	for j := 0; j < d.p; j++ {
		if !d.usable[j] {
			continue
		}
		var g float64
		for i, wx := range d.wcols[j] {
			g += wx * d.y[i]
		}
		if a := math.Abs(g); a > m {
			m = a
		}
	}
	return m / alpha
}

// LambdaPath returns n lambdas decreasing geometrically from max to max*ratio.
func LambdaPath(max float64, n int, ratio float64) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: path needs at least one lambda", ErrInvalidConfig)
	}
	if !(ratio > 0 && ratio < 1) {
		return nil, fmt.Errorf("%w: lambda ratio %g outside (0, 1)", ErrInvalidConfig, ratio)
	}
	if !(max >= 0) || math.IsInf(max, 0) {
		return nil, fmt.Errorf("%w: lambda max %g", ErrInvalidInput, max)
	}
	out := make([]float64, n)
	out[0] = max
	if n == 1 {
		return out, nil
	}
	step := math.Pow(ratio, 1/float64(n-1))
	for i := 1; i < n; i++ {
		out[i] = out[i-1] * step
	}
	out[n-1] = max * ratio
	return out, nil
}

// PathResult holds the fits along a lambda path, in path order.
type PathResult struct {
	Lambdas []float64
	Fits    []Fit
	// NonConverged indexes fits that carry a best-effort solution.
	NonConverged []int
	Warnings     []error
}

// Betas returns the coefficient vectors along the path.
func (r *PathResult) Betas() [][]float64 {
	out := make([][]float64, len(r.Fits))
	for i, f := range r.Fits {
		out[i] = f.Beta
	}
	return out
}

// SolvePath fits every lambda in order on one solver, each warm-started from the
// previous solution. Non-convergence is recorded, not fatal.
func SolvePath(ctx context.Context, s *Solver, lambdas []float64) (*PathResult, error) {
	res := &PathResult{
		Lambdas: append([]float64(nil), lambdas...),
		Fits:    make([]Fit, 0, len(lambdas)),
	}
	for i, lambda := range lambdas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fit, err := s.Solve(lambda)
		if err != nil {
			if !errors.Is(err, ErrNonConvergence) {
				return nil, fmt.Errorf("solve lambda[%d]=%g: %w", i, lambda, err)
			}
			res.NonConverged = append(res.NonConverged, i)
			res.Warnings = append(res.Warnings, err)
		}
		res.Fits = append(res.Fits, fit)
	}
	return res, nil
}
