package metrics

import (
	"testing"

	"FinSelect/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordBuild("BTC", models.StatusDone)
	r.RecordBuild("BTC", models.StatusDone)
	r.RecordBuild("BTC", models.StatusFailed)
	r.RecordError("load_prices")
	r.RecordNonConverged("path", 3)
	r.RecordNonConverged("path", 0)
	r.RecordSelection("BTC", 0.004, 0.021, 5)
	r.RecordLatency("build", 1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.builds.WithLabelValues("BTC", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.builds.WithLabelValues("BTC", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("load_prices")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.nonConverged.WithLabelValues("path")))
	assert.Equal(t, 0.004, testutil.ToFloat64(r.lambda.WithLabelValues("BTC")))
	assert.Equal(t, 0.021, testutil.ToFloat64(r.cvScore.WithLabelValues("BTC")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.active.WithLabelValues("BTC")))

	n, err := testutil.GatherAndCount(reg, "finselect_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
