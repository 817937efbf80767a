package metrics

import (
	"FinSelect/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	builds       *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	nonConverged *prometheus.CounterVec
	lambda       *prometheus.GaugeVec
	cvScore      *prometheus.GaugeVec
	active       *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		builds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finselect_model_builds_total",
				Help: "Model builds by symbol and final status",
			},
			[]string{"symbol", "status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finselect_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		nonConverged: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finselect_solver_nonconverged_total",
				Help: "Coordinate descent solves that hit the iteration budget",
			},
			[]string{"stage"},
		),
		lambda: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finselect_selected_lambda",
				Help: "Penalty chosen by cross-validation for the latest model",
			},
			[]string{"symbol"},
		),
		cvScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finselect_cv_score",
				Help: "Mean held-out explained variance at the selected lambda",
			},
			[]string{"symbol"},
		),
		active: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finselect_active_features",
				Help: "Nonzero coefficients in the latest model",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finselect_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBuild(symbol string, status models.ReportStatus) {
	r.builds.WithLabelValues(symbol, string(status)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordNonConverged(stage string, n int) {
	if n > 0 {
		r.nonConverged.WithLabelValues(stage).Add(float64(n))
	}
}

func (r *Recorder) RecordSelection(symbol string, lambda, cvScore float64, active int) {
	r.lambda.WithLabelValues(symbol).Set(lambda)
	r.cvScore.WithLabelValues(symbol).Set(cvScore)
	r.active.WithLabelValues(symbol).Set(float64(active))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
