package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncSwitch(ResultSubscribed)
	collector.IncDisconnectError()
	collector.IncForwarded()
	collector.IncSkipped()
	collector.IncDropped()
	collector.SetRegisteredConsumers(3)
}

func TestPrometheusCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncSwitch(ResultSubscribed)
	collector.IncSwitch(ResultSubscribed)
	collector.IncSwitch(ResultFailed)
	collector.IncDisconnectError()
	collector.IncForwarded()
	collector.IncSkipped()
	collector.IncDropped()
	collector.SetRegisteredConsumers(4)

	require.Equal(t, 2.0, testutil.ToFloat64(collector.switches.WithLabelValues(ResultSubscribed)))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.switches.WithLabelValues(ResultFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.disconnectErrors))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.forwarded))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.skipped))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.dropped))
	require.Equal(t, 4.0, testutil.ToFloat64(collector.registeredConsumers))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 6)
}

func TestPrometheusCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	second, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	require.Same(t, first.switches, second.switches)

	first.IncForwarded()
	second.IncForwarded()
	require.Equal(t, 2.0, testutil.ToFloat64(first.forwarded))
}
