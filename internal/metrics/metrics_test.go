package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsByOperationAndResult(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(err)

	m.Observe("submit_job", 201, 5*time.Millisecond, "success")
	m.Observe("submit_job", 400, 2*time.Millisecond, "status")
	m.Observe("get_job", 0, time.Millisecond, "transport")

	require.Equal(1.0, testutil.ToFloat64(m.requests.WithLabelValues("submit_job", "201", "success")))
	require.Equal(1.0, testutil.ToFloat64(m.requests.WithLabelValues("submit_job", "400", "status")))
	require.Equal(1.0, testutil.ToFloat64(m.requests.WithLabelValues("get_job", "none", "transport")))
	require.Equal(2, testutil.CollectAndCount(m.latency))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	first, err := New(reg)
	require.NoError(err)
	second, err := New(reg)
	require.NoError(err)

	second.Observe("ping", 200, time.Millisecond, "success")
	require.Equal(1.0, testutil.ToFloat64(first.requests.WithLabelValues("ping", "200", "success")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *ClientMetrics
	require.NotPanics(t, func() {
		m.Observe("ping", 200, time.Millisecond, "success")
	})
}
