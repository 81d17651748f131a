package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полное время пайплайна по коду результата
	RequestDuration *prometheus.HistogramVec

	// Traffic: исполнения по коду результата и достигнутому этапу
	Requests *prometheus.CounterVec

	// Payments: успешные списания и их сумма
	Charges       prometheus.Counter
	ChargedAmount prometheus.Counter
	WalletBalance prometheus.Gauge

	// Отказы лимитера /execute
	RateLimited prometheus.Counter

	// Saturation: состояние Circuit Breaker хранилища аудита (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orch_execute_duration_seconds",
			Help:    "Histogram of execution pipeline latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"code"}),

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orch_execute_total",
			Help: "Executions by result code and last reached stage.",
		}, []string{"code", "stage"}),

		Charges: f.NewCounter(prometheus.CounterOpts{
			Name: "orch_wallet_charges_total",
			Help: "Number of successful wallet charges.",
		}),

		ChargedAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "orch_wallet_charged_amount_total",
			Help: "Sum of all successful charges.",
		}),

		WalletBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "orch_wallet_balance",
			Help: "Current wallet balance.",
		}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "orch_rate_limited_total",
			Help: "Requests rejected by the per-key rate limiter.",
		}),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orch_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"breaker"}),

		AuditBufferFill: f.NewGauge(prometheus.GaugeOpts{
			Name: "orch_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}

// OnBreakerState - колбэк для audit.NewReliableStorage
func (m *Metrics) OnBreakerState(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}
