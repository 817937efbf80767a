package elasticnet

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when there are too few rows to fit or validate.
	ErrInsufficientData = errors.New("elasticnet: insufficient data")
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("elasticnet: invalid config")
	// ErrNonConvergence accompanies a best-effort result that did not meet the tolerance.
	ErrNonConvergence = errors.New("elasticnet: did not converge")
	// ErrDegenerateColumn marks a predictor with (near) zero variance.
	ErrDegenerateColumn = errors.New("elasticnet: degenerate column")
	// ErrInvalidInput is returned for mismatched shapes, negative weights or non-finite values.
	ErrInvalidInput = errors.New("elasticnet: invalid input")
	// ErrInvalidTransition is returned when Selector phases are called out of order.
	ErrInvalidTransition = errors.New("elasticnet: invalid phase transition")
)

// NonConvergenceError describes a solve that exhausted its budget or hit a non-finite update.
type NonConvergenceError struct {
	Lambda     float64
	Iterations int
	MaxChange  float64
	// Coordinate is the column that produced a non-finite value, or -1.
	Coordinate int
}

func (e *NonConvergenceError) Error() string {
	if e.Coordinate >= 0 {
		return fmt.Sprintf("elasticnet: non-finite update at coordinate %d (lambda=%g, iterations=%d)",
			e.Coordinate, e.Lambda, e.Iterations)
	}
	return fmt.Sprintf("elasticnet: did not converge at lambda=%g after %d iterations (max change %g)",
		e.Lambda, e.Iterations, e.MaxChange)
}

func (e *NonConvergenceError) Is(target error) bool { return target == ErrNonConvergence }

// DegenerateColumnError lists columns whose scale fell below MinScale.
type DegenerateColumnError struct {
	Columns []int
}

func (e *DegenerateColumnError) Error() string {
	return fmt.Sprintf("elasticnet: %d degenerate column(s): %v", len(e.Columns), e.Columns)
}

func (e *DegenerateColumnError) Is(target error) bool { return target == ErrDegenerateColumn }

// IsWarning reports whether err only carries non-fatal diagnostics.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNonConvergence) || errors.Is(err, ErrDegenerateColumn)
}
