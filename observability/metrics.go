package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CallMetrics tracks JSON-RPC traffic per method.
type CallMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
	rejected *prometheus.CounterVec
}

var (
	callMetricsOnce sync.Once
	callMetrics     *CallMetrics
)

// RPC returns the process-wide call metrics, registering them on first use.
func RPC() *CallMetrics {
	callMetricsOnce.Do(func() {
		callMetrics = &CallMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftescrow",
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "JSON-RPC calls by module, method and HTTP status.",
			}, []string{"module", "method", "status"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftescrow",
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Time spent serving a JSON-RPC call.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			}, []string{"module", "method"}),
			inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "nftescrow",
				Subsystem: "rpc",
				Name:      "inflight_calls",
				Help:      "Calls currently executing, per module.",
			}, []string{"module"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftescrow",
				Subsystem: "rpc",
				Name:      "rejected_total",
				Help:      "Calls refused before reaching a handler.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(callMetrics.calls, callMetrics.duration, callMetrics.inflight, callMetrics.rejected)
	})
	return callMetrics
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// Begin marks a call as in flight. The returned func records its completion
// with the HTTP status that was written.
func (m *CallMetrics) Begin(module, method string) func(status int) {
	if m == nil {
		return func(int) {}
	}
	module, method = orUnknown(module), orUnknown(method)
	start := time.Now()
	gauge := m.inflight.WithLabelValues(module)
	gauge.Inc()
	return func(status int) {
		gauge.Dec()
		m.calls.WithLabelValues(module, method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(module, method).Observe(time.Since(start).Seconds())
	}
}

// Reject counts a call refused for reason, e.g. "rate_limit" or
// "unauthenticated".
func (m *CallMetrics) Reject(module, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(orUnknown(module), orUnknown(reason)).Inc()
}
