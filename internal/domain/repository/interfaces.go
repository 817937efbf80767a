package repository

import (
	"context"
	"errors"
	"time"

	"FinSelect/internal/domain/models"
)

var ErrReportNotFound = errors.New("model report not found")

// ReportStore keeps model reports by ID.
type ReportStore interface {
	Save(ctx context.Context, r *models.ModelReport) error
	Get(ctx context.Context, id string) (*models.ModelReport, error)
	// Acquire guards a build for key; release must be called when acquired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (acquired bool, release func(), err error)
}

// ReportPublisher announces finished reports to downstream consumers.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r *models.ModelReport) error
	Close() error
}

type Metrics interface {
	RecordBuild(symbol string, status models.ReportStatus)
	RecordError(kind string)
	RecordNonConverged(stage string, n int)
	RecordSelection(symbol string, lambda, cvScore float64, active int)
	RecordLatency(op string, seconds float64)
}
