package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuthMetricsCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewAuthMetrics(reg)

	metrics.ObserveLogin("success")
	metrics.ObserveLogin("success")
	metrics.ObserveLogin("invalid_credentials")
	metrics.ObserveTwoFactor("login", "success")
	metrics.ObserveRefresh("reused")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.logins.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.twoFactor.WithLabelValues("login", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.twoFactor.WithLabelValues("registration", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshes.WithLabelValues("reused")))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 5, count)
}
