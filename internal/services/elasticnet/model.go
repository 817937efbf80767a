package elasticnet

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PathPoint summarizes one lambda of the full-data path.
type PathPoint struct {
	Lambda    float64 `json:"lambda"`
	Active    int     `json:"active"`
	Explained float64 `json:"explained"`
	CVScore   float64 `json:"cv_score"`
	Converged bool    `json:"converged"`
}

// Model is a finished elastic-net fit. It is immutable; accessors return copies.
type Model struct {
	std          *Standardization
	beta         []float64
	intercept    float64
	raw          []float64
	rawIntercept float64

	alpha      float64
	lambda     float64
	tolerance  float64
	iterations int
	converged  bool

	cvScore   float64
	inSample  float64
	bestIndex int
	path      []PathPoint
	warnings  []error
}

func newModel(s *Selector, fit Fit) (*Model, error) {
	raw, rawB0, err := s.std.RawCoefficients(fit.Beta, fit.Intercept)
	if err != nil {
		return nil, err
	}
	path := make([]PathPoint, len(s.path.Fits))
	for i, f := range s.path.Fits {
		path[i] = PathPoint{
			Lambda:    f.Lambda,
			Active:    f.ActiveCount(),
			Explained: f.Explained,
			CVScore:   s.cv.MeanScores[i],
			Converged: f.Converged,
		}
	}
	return &Model{
		std:          s.std,
		beta:         fit.Beta,
		intercept:    fit.Intercept,
		raw:          raw,
		rawIntercept: rawB0,
		alpha:        s.cfg.Alpha,
		lambda:       fit.Lambda,
		tolerance:    s.cfg.Tolerance,
		iterations:   fit.Iterations,
		converged:    fit.Converged,
		cvScore:      s.cv.BestScore,
		inSample:     fit.Explained,
		bestIndex:    s.cv.BestIndex,
		path:         path,
		warnings:     s.Warnings(),
	}, nil
}

// Coefficients returns the coefficients on the standardized scale.
func (m *Model) Coefficients() []float64 { return append([]float64(nil), m.beta...) }

// Intercept returns the intercept on the standardized scale.
func (m *Model) Intercept() float64 { return m.intercept }

// RawCoefficients returns coefficients and intercept in the original feature units.
func (m *Model) RawCoefficients() ([]float64, float64) {
	return append([]float64(nil), m.raw...), m.rawIntercept
}

func (m *Model) Alpha() float64             { return m.alpha }
func (m *Model) Lambda() float64            { return m.lambda }
func (m *Model) CVScore() float64           { return m.cvScore }
func (m *Model) InSampleExplained() float64 { return m.inSample }
func (m *Model) Converged() bool            { return m.converged }
func (m *Model) Iterations() int            { return m.iterations }

// Path returns the full-data path summary with mean cross-validated scores.
func (m *Model) Path() []PathPoint { return append([]PathPoint(nil), m.path...) }

// Warnings returns non-fatal diagnostics raised while building the model.
func (m *Model) Warnings() []error { return append([]error(nil), m.warnings...) }

// Standardization returns the column transform applied before prediction.
func (m *Model) Standardization() *Standardization { return m.std }

// ActiveSet returns the indexes of nonzero coefficients.
func (m *Model) ActiveSet() []int {
	var out []int
	for j, b := range m.beta {
		if b != 0 {
			out = append(out, j)
		}
	}
	return out
}

// Predict scores one raw feature row.
func (m *Model) Predict(row []float64) (float64, error) {
	z, err := m.std.TransformRow(nil, row)
	if err != nil {
		return 0, err
	}
	out := m.intercept
	for j, b := range m.beta {
		out += b * z[j]
	}
	return out, nil
}

// PredictMatrix scores every row of a raw feature matrix.
func (m *Model) PredictMatrix(x mat.Matrix) ([]float64, error) {
	r, c := x.Dims()
	if c != len(m.beta) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidInput, len(m.beta), c)
	}
	out := make([]float64, r)
	row := make([]float64, c)
	z := make([]float64, c)
	for i := 0; i < r; i++ {
		if c > 0 {
			mat.Row(row, i, x)
		}
		z, _ = m.std.TransformRow(z, row)
		v := m.intercept
		for j, b := range m.beta {
			v += b * z[j]
		}
		out[i] = v
	}
	return out, nil
}

// Score returns the explained variance 1 - SSE/SST of predictions on x against y,
// with SST measured around the mean of y.
func (m *Model) Score(x mat.Matrix, y []float64) (float64, error) {
	pred, err := m.PredictMatrix(x)
	if err != nil {
		return 0, err
	}
	if len(y) != len(pred) {
		return 0, fmt.Errorf("%w: %d rows but %d targets", ErrInvalidInput, len(pred), len(y))
	}
	if len(y) == 0 {
		return 0, fmt.Errorf("%w: empty evaluation set", ErrInsufficientData)
	}
	mean := stat.Mean(y, nil)
	var sse, sst float64
	for i, v := range y {
		e := v - pred[i]
		c := v - mean
		sse += e * e
		sst += c * c
	}
	if sst <= 0 {
		return 0, nil
	}
	return 1 - sse/sst, nil
}

// Snapshot is a serializable view of a Model.
type Snapshot struct {
	Alpha             float64     `json:"alpha"`
	Lambda            float64     `json:"lambda"`
	Tolerance         float64     `json:"tolerance"`
	Iterations        int         `json:"iterations"`
	Converged         bool        `json:"converged"`
	Coefficients      []float64   `json:"coefficients"`
	Intercept         float64     `json:"intercept"`
	RawCoefficients   []float64   `json:"raw_coefficients"`
	RawIntercept      float64     `json:"raw_intercept"`
	Means             []float64   `json:"means"`
	Scales            []float64   `json:"scales"`
	Degenerate        []int       `json:"degenerate,omitempty"`
	CVScore           float64     `json:"cv_score"`
	InSampleExplained float64     `json:"in_sample_explained"`
	BestIndex         int         `json:"best_index"`
	Path              []PathPoint `json:"path"`
}

// Snapshot returns a copy suitable for JSON encoding.
func (m *Model) Snapshot() Snapshot {
	raw, b0 := m.RawCoefficients()
	return Snapshot{
		Alpha:             m.alpha,
		Lambda:            m.lambda,
		Tolerance:         m.tolerance,
		Iterations:        m.iterations,
		Converged:         m.converged,
		Coefficients:      m.Coefficients(),
		Intercept:         m.intercept,
		RawCoefficients:   raw,
		RawIntercept:      b0,
		Means:             m.std.Means(),
		Scales:            m.std.Scales(),
		Degenerate:        m.std.Degenerate(),
		CVScore:           m.cvScore,
		InSampleExplained: m.inSample,
		BestIndex:         m.bestIndex,
		Path:              m.Path(),
	}
}
