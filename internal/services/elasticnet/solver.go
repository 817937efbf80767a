package elasticnet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// SolverPhase is the lifecycle of a Solver.
type SolverPhase int

const (
	SolverUnfit SolverPhase = iota
	SolverFitting
	SolverFit
)

func (p SolverPhase) String() string {
	switch p {
	case SolverUnfit:
		return "unfit"
	case SolverFitting:
		return "fitting"
	case SolverFit:
		return "fit"
	default:
		return fmt.Sprintf("SolverPhase(%d)", int(p))
	}
}

// Fit is a snapshot of a single solve. Slices are copies owned by the caller.
type Fit struct {
	Lambda     float64   `json:"lambda"`
	Beta       []float64 `json:"beta"`
	Intercept  float64   `json:"intercept"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	// Explained is the in-sample weighted explained variance.
	Explained float64 `json:"explained"`
}

// ActiveCount returns the number of nonzero coefficients.
func (f Fit) ActiveCount() int {
	n := 0
	for _, b := range f.Beta {
		if b != 0 {
			n++
		}
	}
	return n
}

// L1 returns the l1 norm of the coefficients.
func (f Fit) L1() float64 {
	var s float64
	for _, b := range f.Beta {
		s += math.Abs(b)
	}
	return s
}

// Solver runs cyclic coordinate descent on a Design. It exclusively owns its
// coefficient and residual buffers and must not be shared between goroutines.
type Solver struct {
	d       *Design
	alpha   float64
	tol     float64
	maxIter int

	beta     []float64
	resid    []float64
	snapshot []float64
	phase    SolverPhase
}

// NewSolver returns a solver starting from beta = 0.
func NewSolver(d *Design, alpha, tol float64, maxIter int) (*Solver, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil design", ErrInvalidInput)
	}
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("%w: alpha %g outside (0, 1]", ErrInvalidConfig, alpha)
	}
	if !(tol > 0) {
		return nil, fmt.Errorf("%w: tolerance must be positive", ErrInvalidConfig)
	}
	if maxIter < 1 {
		return nil, fmt.Errorf("%w: max iterations must be positive", ErrInvalidConfig)
	}
	s := &Solver{
		d:        d,
		alpha:    alpha,
		tol:      tol,
		maxIter:  maxIter,
		beta:     make([]float64, d.p),
		resid:    append([]float64(nil), d.y...),
		snapshot: make([]float64, d.p),
	}
	return s, nil
}

// Phase reports the solver lifecycle state.
func (s *Solver) Phase() SolverPhase { return s.phase }

// Beta returns a copy of the current coefficients.
func (s *Solver) Beta() []float64 { return append([]float64(nil), s.beta...) }

// WarmStart installs initial coefficients. Coefficients of unusable columns are zeroed.
func (s *Solver) WarmStart(beta []float64) error {
	if len(beta) != s.d.p {
		return fmt.Errorf("%w: warm start has %d coefficients, design has %d", ErrInvalidInput, len(beta), s.d.p)
	}
	if !allFinite(beta) {
		return fmt.Errorf("%w: non-finite warm start", ErrInvalidInput)
	}
	for j, b := range beta {
		if !s.d.usable[j] {
			b = 0
		}
		s.beta[j] = b
	}
	s.rebuildResidual()
	s.phase = SolverUnfit
	return nil
}

func (s *Solver) rebuildResidual() {
	copy(s.resid, s.d.y)
	for j, b := range s.beta {
		if b != 0 {
			floats.AddScaled(s.resid, -b, s.d.cols[j])
		}
	}
}

// SoftThreshold returns sign(z) * max(|z| - t, 0).
func SoftThreshold(z, t float64) float64 {
	switch {
	case z > t:
		return z - t
	case z < -t:
		return z + t
	default:
		return 0
	}
}

// Solve minimizes the elastic-net objective at lambda, starting from the current
// coefficients. On budget exhaustion or a non-finite update the best-effort fit is
// returned together with an error matching ErrNonConvergence.
func (s *Solver) Solve(lambda float64) (Fit, error) {
	if !(lambda >= 0) || math.IsInf(lambda, 0) {
		return Fit{}, fmt.Errorf("%w: lambda %g", ErrInvalidConfig, lambda)
	}
	s.phase = SolverFitting

	if s.d.p == 0 {
		return s.finish(lambda, 0, true), nil
	}

	l1 := lambda * s.alpha
	l2 := lambda * (1 - s.alpha)

	iter := 0
	full := true
	for iter < s.maxIter {
		iter++
		change, support, bad := s.sweep(l1, l2, full)
		if bad >= 0 {
			fit := s.finish(lambda, iter, false)
			return fit, &NonConvergenceError{Lambda: lambda, Iterations: iter, MaxChange: math.Inf(1), Coordinate: bad}
		}
		if full {
			if change < s.tol && !support {
				return s.finish(lambda, iter, true), nil
			}
			full = false
			continue
		}
		// Active-set pass settled: confirm with a full sweep.
		if change < s.tol {
			full = true
		}
	}

	fit := s.finish(lambda, iter, false)
	return fit, &NonConvergenceError{Lambda: lambda, Iterations: iter, MaxChange: s.lastChange(l1, l2), Coordinate: -1}
}

// sweep performs one cyclic pass. In active mode only nonzero coefficients move.
// It returns the largest coefficient change, whether any coefficient entered or
// left the support, and the first coordinate that produced a non-finite value (or -1).
func (s *Solver) sweep(l1, l2 float64, full bool) (float64, bool, int) {
	d := s.d
	copy(s.snapshot, s.beta)

	var maxChange float64
	support := false
	bad := -1
	for j := 0; j < d.p; j++ {
		old := s.beta[j]
		if !d.usable[j] || (!full && old == 0) {
			continue
		}
		z := floats.Dot(d.wcols[j], s.resid) + d.xss[j]*old
		// SoftThreshold maps NaN to 0, so z is checked before thresholding.
		if !finite(z) || !finite(d.xss[j]) {
			if bad < 0 {
				bad = j
			}
			continue
		}
		next := SoftThreshold(z, l1) / (d.xss[j] + l2)
		if !finite(next) {
			if bad < 0 {
				bad = j
			}
			continue
		}
		delta := next - old
		if delta == 0 {
			continue
		}
		floats.AddScaled(s.resid, -delta, d.cols[j])
		s.beta[j] = next
		if (old == 0) != (next == 0) {
			support = true
		}
		if a := math.Abs(delta); a > maxChange {
			maxChange = a
		}
	}

	if bad < 0 && !allFinite(s.resid) {
		bad = d.p - 1
		for j := range s.beta {
			if s.beta[j] != s.snapshot[j] {
				bad = j
				break
			}
		}
	}
	if bad >= 0 {
		copy(s.beta, s.snapshot)
		s.rebuildResidual()
	}
	return maxChange, support, bad
}

// lastChange estimates how far the current coefficients are from a fixed point
// without modifying them.
func (s *Solver) lastChange(l1, l2 float64) float64 {
	d := s.d
	var m float64
	for j := 0; j < d.p; j++ {
		if !d.usable[j] {
			continue
		}
		z := floats.Dot(d.wcols[j], s.resid) + d.xss[j]*s.beta[j]
		next := SoftThreshold(z, l1) / (d.xss[j] + l2)
		if a := math.Abs(next - s.beta[j]); a > m {
			m = a
		}
	}
	return m
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (s *Solver) finish(lambda float64, iter int, converged bool) Fit {
	s.phase = SolverFit
	beta := s.Beta()
	return Fit{
		Lambda:     lambda,
		Beta:       beta,
		Intercept:  s.d.intercept(beta),
		Iterations: iter,
		Converged:  converged,
		Explained:  s.d.explained(s.resid),
	}
}
