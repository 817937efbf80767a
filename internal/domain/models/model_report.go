package models

import "time"

// ReportStatus tracks a model build from request to completion.
type ReportStatus string

const (
	StatusQueued  ReportStatus = "queued"
	StatusRunning ReportStatus = "running"
	StatusDone    ReportStatus = "done"
	StatusFailed  ReportStatus = "failed"
)

// CoefficientReport is one selected feature of a fitted model.
type CoefficientReport struct {
	Name    string        `json:"name"`
	Kind    IndicatorKind `json:"kind"`
	Beta    float64       `json:"beta"`
	RawBeta float64       `json:"raw_beta"`
}

// PathPointReport summarizes one lambda of the regularization path.
type PathPointReport struct {
	Lambda    float64 `json:"lambda"`
	Active    int     `json:"active"`
	Explained float64 `json:"explained"`
	CVScore   float64 `json:"cv_score"`
	Converged bool    `json:"converged"`
}

// ModelReport is the persisted and published outcome of a build.
type ModelReport struct {
	ID        string       `json:"id"`
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Source    string       `json:"source"`
	Status    ReportStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	Prices      int `json:"prices,omitempty"`
	TrainRows   int `json:"train_rows,omitempty"`
	TestRows    int `json:"test_rows,omitempty"`
	Candidates  int `json:"candidates,omitempty"`
	MaxLookback int `json:"max_lookback,omitempty"`
	PurgeBuffer int `json:"purge_buffer,omitempty"`

	Alpha             float64             `json:"alpha,omitempty"`
	Lambda            float64             `json:"lambda,omitempty"`
	Intercept         float64             `json:"intercept"`
	CVScore           float64             `json:"cv_score"`
	InSampleExplained float64             `json:"in_sample_explained"`
	TestExplained     *float64            `json:"test_explained,omitempty"`
	Coefficients      []CoefficientReport `json:"coefficients,omitempty"`
	Path              []PathPointReport   `json:"path,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
	DurationMs        int64               `json:"duration_ms,omitempty"`
}

// Finished reports whether the build reached a terminal status.
func (r *ModelReport) Finished() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}
