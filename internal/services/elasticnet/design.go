package elasticnet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const minSumSquares = MinScale * MinScale

// Design is the read-only problem shared by every solver working on the same rows.
// Columns and target are centered with the normalized case weights so the intercept
// can be recovered after the fit.
type Design struct {
	n, p   int
	cols   [][]float64 // centered columns
	wcols  [][]float64 // weight * centered column
	y      []float64   // centered target
	w      []float64   // weights summing to 1
	xMean  []float64
	yMean  float64
	xss    []float64
	yss    float64
	usable []bool
}

// NewDesign builds a design from every row of x. Nil weights mean equal weights.
func NewDesign(x mat.Matrix, y, weights []float64) (*Design, error) {
	r, _ := x.Dims()
	return newDesign(x, y, weights, seq(r))
}

// NewDesignRows builds a design restricted to rows, in the given order.
func NewDesignRows(x mat.Matrix, y, weights []float64, rows []int) (*Design, error) {
	return newDesign(x, y, weights, rows)
}

func newDesign(x mat.Matrix, y, weights []float64, rows []int) (*Design, error) {
	r, p := x.Dims()
	if len(y) != r {
		return nil, fmt.Errorf("%w: %d rows but %d targets", ErrInvalidInput, r, len(y))
	}
	if weights != nil && len(weights) != r {
		return nil, fmt.Errorf("%w: %d rows but %d weights", ErrInvalidInput, r, len(weights))
	}
	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows, got %d", ErrInsufficientData, n)
	}

	d := &Design{
		n:      n,
		p:      p,
		cols:   make([][]float64, p),
		wcols:  make([][]float64, p),
		y:      make([]float64, n),
		w:      make([]float64, n),
		xMean:  make([]float64, p),
		xss:    make([]float64, p),
		usable: make([]bool, p),
	}

	var total float64
	for k, i := range rows {
		if i < 0 || i >= r {
			return nil, fmt.Errorf("%w: row %d out of range", ErrInvalidInput, i)
		}
		wi := 1.0
		if weights != nil {
			wi = weights[i]
		}
		if wi < 0 || math.IsNaN(wi) || math.IsInf(wi, 0) {
			return nil, fmt.Errorf("%w: invalid weight %g at row %d", ErrInvalidInput, wi, i)
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("%w: non-finite target at row %d", ErrInvalidInput, i)
		}
		d.w[k] = wi
		total += wi
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidInput)
	}
	floats.Scale(1/total, d.w)

	for k, i := range rows {
		d.y[k] = y[i]
		d.yMean += d.w[k] * y[i]
	}
	for k := range d.y {
		d.y[k] -= d.yMean
		d.yss += d.w[k] * d.y[k] * d.y[k]
	}

	for j := 0; j < p; j++ {
		col := make([]float64, n)
		var mean float64
		for k, i := range rows {
			v := x.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value at row %d column %d", ErrInvalidInput, i, j)
			}
			col[k] = v
			mean += d.w[k] * v
		}
		wcol := make([]float64, n)
		var ss float64
		for k := range col {
			col[k] -= mean
			wcol[k] = d.w[k] * col[k]
			ss += wcol[k] * col[k]
		}
		d.cols[j] = col
		d.wcols[j] = wcol
		d.xMean[j] = mean
		d.xss[j] = ss
		d.usable[j] = ss > minSumSquares
	}
	return d, nil
}

// Rows returns the number of observations.
func (d *Design) Rows() int { return d.n }

// Cols returns the number of predictors.
func (d *Design) Cols() int { return d.p }

// TargetMean returns the weighted mean of the target.
func (d *Design) TargetMean() float64 { return d.yMean }

// intercept recovers b0 for coefficients fitted on the centered problem.
func (d *Design) intercept(beta []float64) float64 {
	b0 := d.yMean
	for j, b := range beta {
		b0 -= b * d.xMean[j]
	}
	return b0
}

// explained returns 1 - weighted SSE / weighted SST for the residual vector.
func (d *Design) explained(resid []float64) float64 {
	if d.yss <= 0 {
		return 0
	}
	var sse float64
	for i, r := range resid {
		sse += d.w[i] * r * r
	}
	return 1 - sse/d.yss
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
