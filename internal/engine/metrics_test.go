package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricValue читает текущее значение счетчика или gauge
func metricValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestMetrics_OnBreakerState(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.OnBreakerState("audit-storage", true)
	assert.Equal(t, 1.0, metricValue(t, m.CircuitBreakerState.WithLabelValues("audit-storage")))

	m.OnBreakerState("audit-storage", false)
	assert.Equal(t, 0.0, metricValue(t, m.CircuitBreakerState.WithLabelValues("audit-storage")))
}

func TestNewMetrics_NilRegistererIsIsolated(t *testing.T) {
	// Два набора без общего регистратора не конфликтуют по именам
	assert.NotPanics(t, func() {
		NewMetrics(nil)
		NewMetrics(nil)
	})
}
