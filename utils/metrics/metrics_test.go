package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	reg := NewRegistry(logger)
	assert.NotNil(t, reg.Registerer())
	assert.NotNil(t, reg.Gatherer())
}

func TestExecutorMetrics(t *testing.T) {
	reg := NewRegistry(nil)
	metrics := NewExecutorMetrics("test_executor", reg.Registerer())
	require.NotNil(t, metrics)

	// Test counter operations
	metrics.Encoded.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Encoded))

	metrics.Failures.WithLabelValues("execute").Inc()
	metrics.Failures.WithLabelValues("execute").Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Failures.WithLabelValues("execute")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Failures.WithLabelValues("approve")))

	// Test histogram operations
	metrics.PayloadSize.Observe(74)
	metrics.PayloadSize.Observe(32)
	var m dto.Metric
	require.NoError(t, metrics.PayloadSize.Write(&m))
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
	assert.Equal(t, float64(106), m.GetHistogram().GetSampleSum())

	count, err := testutil.GatherAndCount(reg.Gatherer(), "test_executor_requests_encoded_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSeparateRegistries(t *testing.T) {
	// The same namespace must register cleanly on independent registries.
	assert.NotPanics(t, func() {
		NewExecutorMetrics("dup", NewRegistry(nil).Registerer())
		NewExecutorMetrics("dup", NewRegistry(nil).Registerer())
	})
}
