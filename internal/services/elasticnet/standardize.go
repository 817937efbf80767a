package elasticnet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinScale is the smallest column standard deviation treated as informative.
const MinScale = 1e-10

// Standardization holds per-column location and scale estimated from training rows.
// It is immutable once built and may be shared between goroutines.
type Standardization struct {
	means      []float64
	scales     []float64
	degenerate []int
}

// FitStandardization estimates column means and population standard deviations.
func FitStandardization(x mat.Matrix) (*Standardization, error) {
	r, c := x.Dims()
	if r < 2 {
		return nil, fmt.Errorf("%w: standardization needs at least 2 rows, got %d", ErrInsufficientData, r)
	}

	s := &Standardization{
		means:  make([]float64, c),
		scales: make([]float64, c),
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		if !allFinite(col) {
			return nil, fmt.Errorf("%w: non-finite value in column %d", ErrInvalidInput, j)
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		s.means[j] = mean
		if std < MinScale || math.IsNaN(std) {
			s.scales[j] = 0
			s.degenerate = append(s.degenerate, j)
			continue
		}
		s.scales[j] = std
	}
	return s, nil
}

// Cols returns the number of columns the standardization was fitted on.
func (s *Standardization) Cols() int { return len(s.means) }

// Means returns a copy of the column means.
func (s *Standardization) Means() []float64 { return append([]float64(nil), s.means...) }

// Scales returns a copy of the column scales; degenerate columns report 0.
func (s *Standardization) Scales() []float64 { return append([]float64(nil), s.scales...) }

// Degenerate lists the columns forced to zero.
func (s *Standardization) Degenerate() []int { return append([]int(nil), s.degenerate...) }

// Warning reports degenerate columns as a DegenerateColumnError, or nil.
func (s *Standardization) Warning() error {
	if len(s.degenerate) == 0 {
		return nil
	}
	return &DegenerateColumnError{Columns: s.Degenerate()}
}

// Transform returns a standardized copy of x. Degenerate columns become 0.
func (s *Standardization) Transform(x mat.Matrix) (mat.Matrix, error) {
	r, c := x.Dims()
	if c != len(s.means) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidInput, len(s.means), c)
	}
	if c == 0 {
		return Empty(r), nil
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = s.value(j, x.At(i, j))
		}
	}
	return out, nil
}

// TransformRow standardizes a single observation into dst, allocating when dst is short.
func (s *Standardization) TransformRow(dst, row []float64) ([]float64, error) {
	if len(row) != len(s.means) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidInput, len(s.means), len(row))
	}
	if cap(dst) < len(row) {
		dst = make([]float64, len(row))
	}
	dst = dst[:len(row)]
	for j, v := range row {
		dst[j] = s.value(j, v)
	}
	return dst, nil
}

func (s *Standardization) value(j int, v float64) float64 {
	if s.scales[j] == 0 {
		return 0
	}
	return (v - s.means[j]) / s.scales[j]
}

// RawCoefficients re-expresses standardized coefficients in the original units.
func (s *Standardization) RawCoefficients(beta []float64, intercept float64) ([]float64, float64, error) {
	if len(beta) != len(s.means) {
		return nil, 0, fmt.Errorf("%w: expected %d coefficients, got %d", ErrInvalidInput, len(s.means), len(beta))
	}
	raw := make([]float64, len(beta))
	b0 := intercept
	for j, b := range beta {
		if s.scales[j] == 0 {
			continue
		}
		raw[j] = b / s.scales[j]
		b0 -= raw[j] * s.means[j]
	}
	return raw, b0, nil
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// emptyMatrix is an r x 0 matrix; gonum's Dense cannot represent zero columns.
type emptyMatrix struct{ r int }

// Empty returns a matrix with r rows and no columns, for intercept-only problems.
func Empty(r int) mat.Matrix { return emptyMatrix{r: r} }

func (e emptyMatrix) Dims() (int, int)    { return e.r, 0 }
func (e emptyMatrix) At(i, j int) float64 { panic(mat.ErrColAccess) }
func (e emptyMatrix) T() mat.Matrix       { return mat.Transpose{Matrix: e} }
