package elasticnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSelect/pkg/logger"

	"gonum.org/v1/gonum/mat"
)

// Phase is the lifecycle of a Selector.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseStandardized
	PhaseTraining
	PhaseCrossValidated
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseStandardized:
		return "standardized"
	case PhaseTraining:
		return "training"
	case PhaseCrossValidated:
		return "cross_validated"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Observer receives timing and outcome of each selector phase.
type Observer interface {
	ObservePath(nLambdas, nonConverged int, elapsed time.Duration)
	ObserveCrossValidation(summary *CVSummary, elapsed time.Duration)
	ObserveFinal(model *Model)
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger attaches a structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Selector) { s.log = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Selector) { s.obs = o }
}

// Selector drives standardization, the full-data lambda path, blocked
// cross-validation and the final refit. Each step may run once, in order.
type Selector struct {
	cfg   Config
	phase Phase
	log   *logger.Logger
	obs   Observer

	std     *Standardization
	x       mat.Matrix
	y, w    []float64
	design  *Design
	lambdas []float64
	path    *PathResult
	cv      *CVSummary

	warnings []error
}

// NewSelector validates cfg, filling defaults for zero fields.
func NewSelector(cfg Config, opts ...Option) (*Selector, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	s := &Selector{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the normalized configuration.
func (s *Selector) Config() Config { return s.cfg }

// Phase returns the current lifecycle phase.
func (s *Selector) Phase() Phase { return s.phase }

// Warnings returns the non-fatal diagnostics gathered so far.
func (s *Selector) Warnings() []error { return append([]error(nil), s.warnings...) }

// Standardization returns the fitted column transform, or nil before Standardize.
func (s *Selector) Standardization() *Standardization { return s.std }

func (s *Selector) expect(p Phase, op string) error {
	if s.phase != p {
		return fmt.Errorf("%w: %s requires phase %s, selector is %s", ErrInvalidTransition, op, p, s.phase)
	}
	return nil
}

// Standardize fits the column transform on the training matrix and keeps a
// standardized copy. Weights may be nil.
func (s *Selector) Standardize(x mat.Matrix, y, weights []float64) error {
	if err := s.expect(PhaseUninitialized, "Standardize"); err != nil {
		return err
	}
	r, _ := x.Dims()
	if len(y) != r {
		return fmt.Errorf("%w: %d rows but %d targets", ErrInvalidInput, r, len(y))
	}
	if r < 2*s.cfg.NFolds {
		return fmt.Errorf("%w: %d rows for %d folds", ErrInsufficientData, r, s.cfg.NFolds)
	}
	std, err := FitStandardization(x)
	if err != nil {
		return err
	}
	xs, err := std.Transform(x)
	if err != nil {
		return err
	}
	design, err := NewDesign(xs, y, weights)
	if err != nil {
		return err
	}
	if w := std.Warning(); w != nil {
		s.warnings = append(s.warnings, w)
		s.warn("degenerate columns forced to zero", logger.Any("columns", std.Degenerate()))
	}

	s.std = std
	s.x = xs
	s.y = append([]float64(nil), y...)
	if weights != nil {
		s.w = append([]float64(nil), weights...)
	}
	s.design = design
	s.phase = PhaseStandardized
	return nil
}

// TrainPath computes lambda_max on the full training set, fixes the path, and
// solves it warm-started from the largest lambda down.
func (s *Selector) TrainPath(ctx context.Context) (*PathResult, error) {
	if err := s.expect(PhaseStandardized, "TrainPath"); err != nil {
		return nil, err
	}
	start := time.Now()
	lmax := LambdaMax(s.design, s.cfg.Alpha)
	lambdas, err := LambdaPath(lmax, s.cfg.NLambdas, s.cfg.LambdaRatio)
	if err != nil {
		return nil, err
	}
	solver, err := NewSolver(s.design, s.cfg.Alpha, s.cfg.Tolerance, s.cfg.MaxIterations)
	if err != nil {
		return nil, err
	}
	path, err := SolvePath(ctx, solver, lambdas)
	if err != nil {
		return nil, err
	}

	s.lambdas = lambdas
	s.path = path
	s.warnings = append(s.warnings, path.Warnings...)
	s.phase = PhaseTraining

	elapsed := time.Since(start)
	if s.obs != nil {
		s.obs.ObservePath(len(lambdas), len(path.NonConverged), elapsed)
	}
	s.debug("lambda path solved",
		logger.Float64("lambda_max", lmax),
		logger.Int("n_lambdas", len(lambdas)),
		logger.Int("non_converged", len(path.NonConverged)),
		logger.Duration("elapsed_ms", elapsed),
	)
	return path, nil
}

// CrossValidate scores the fixed path with blocked folds, purging buffer rows
// around each held-out block, and selects lambda by the configured policy.
func (s *Selector) CrossValidate(ctx context.Context, buffer int) (*CVSummary, error) {
	if err := s.expect(PhaseTraining, "CrossValidate"); err != nil {
		return nil, err
	}
	start := time.Now()
	summary, err := CrossValidate(ctx, s.x, s.y, s.w, s.lambdas, s.cfg, buffer)
	if err != nil {
		return nil, err
	}
	s.cv = summary
	s.warnings = append(s.warnings, summary.Warnings()...)
	s.phase = PhaseCrossValidated

	elapsed := time.Since(start)
	if s.obs != nil {
		s.obs.ObserveCrossValidation(summary, elapsed)
	}
	s.debug("cross-validation complete",
		logger.Int("folds", len(summary.Folds)),
		logger.Int("best_index", summary.BestIndex),
		logger.Float64("best_lambda", summary.BestLambda),
		logger.Float64("best_score", summary.BestScore),
		logger.Duration("elapsed_ms", elapsed),
	)
	return summary, nil
}

// Finalize refits on the full training set at the selected lambda and returns the
// immutable model. The selector accepts no further calls afterwards.
func (s *Selector) Finalize() (*Model, error) {
	if err := s.expect(PhaseCrossValidated, "Finalize"); err != nil {
		return nil, err
	}
	best := s.cv.BestIndex
	solver, err := NewSolver(s.design, s.cfg.Alpha, s.cfg.Tolerance, s.cfg.MaxIterations)
	if err != nil {
		return nil, err
	}
	if err := solver.WarmStart(s.path.Fits[best].Beta); err != nil {
		return nil, err
	}
	fit, err := solver.Solve(s.cv.BestLambda)
	if err != nil {
		if !errors.Is(err, ErrNonConvergence) {
			return nil, err
		}
		s.warnings = append(s.warnings, err)
		s.warn("final fit did not converge", logger.Error(err))
	}

	m, err := newModel(s, fit)
	if err != nil {
		return nil, err
	}
	s.phase = PhaseFinalized
	if s.obs != nil {
		s.obs.ObserveFinal(m)
	}
	return m, nil
}

func (s *Selector) debug(msg string, fields ...logger.Field) {
	if s.log != nil {
		s.log.Debug(msg, fields...)
	}
}

func (s *Selector) warn(msg string, fields ...logger.Field) {
	if s.log != nil {
		s.log.Warn(msg, fields...)
	}
}

// FitModel runs every selector phase on x, y and optional weights.
func FitModel(ctx context.Context, cfg Config, x mat.Matrix, y, weights []float64, buffer int, opts ...Option) (*Model, error) {
	s, err := NewSelector(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Standardize(x, y, weights); err != nil {
		return nil, err
	}
	if _, err := s.TrainPath(ctx); err != nil {
		return nil, err
	}
	if _, err := s.CrossValidate(ctx, buffer); err != nil {
		return nil, err
	}
	return s.Finalize()
}
