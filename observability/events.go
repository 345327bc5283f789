package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nftescrow/core/events"
	"nftescrow/crypto"
)

type eventMetrics struct {
	emitted   *prometheus.CounterVec
	transfers *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed escrow and registry
// events. The registry doubles as an events.Emitter.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftescrow",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftescrow",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of registry token transfers segmented by collection address.",
			}, []string{"collection"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.transfers)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		eventType = "unknown"
	}
	m.emitted.WithLabelValues(eventType).Inc()
	if transfer, ok := evt.(events.TokenTransferred); ok {
		m.RecordTransfer(crypto.FormatCollection(transfer.Collection))
	}
}

// RecordTransfer increments the transfer counter for the supplied collection.
func (m *eventMetrics) RecordTransfer(collection string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(collection))
	if normalized == "" {
		normalized = "unknown"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}
