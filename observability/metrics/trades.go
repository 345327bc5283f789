package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TradeMetrics tracks the lifecycle of escrow trades.
type TradeMetrics struct {
	created  *prometheus.CounterVec
	closed   *prometheus.CounterVec
	lifetime *prometheus.HistogramVec
	items    *prometheus.HistogramVec
}

var (
	tradesOnce     sync.Once
	tradesRegistry *TradeMetrics
)

func Trades() *TradeMetrics {
	tradesOnce.Do(func() {
		tradesRegistry = &TradeMetrics{
			created: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_trades_created_total",
				Help: "Count of trades opened by deposit policy.",
			}, []string{"policy"}),
			closed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_trades_closed_total",
				Help: "Count of trades reaching a terminal status.",
			}, []string{"status"}),
			lifetime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "escrow_trade_lifetime_seconds",
				Help:    "Time between trade creation and closure.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			}, []string{"status"}),
			items: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "escrow_trade_items",
				Help:    "Number of items required per side at creation.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			}, []string{"side"}),
		}
		prometheus.MustRegister(
			tradesRegistry.created,
			tradesRegistry.closed,
			tradesRegistry.lifetime,
			tradesRegistry.items,
		)
	})
	return tradesRegistry
}

// RecordCreated counts a new trade and the size of each required bundle.
func (m *TradeMetrics) RecordCreated(policy string, itemsA, itemsB int) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(label(policy)).Inc()
	m.items.WithLabelValues("a").Observe(float64(itemsA))
	m.items.WithLabelValues("b").Observe(float64(itemsB))
}

// RecordClosed counts a terminal trade.
func (m *TradeMetrics) RecordClosed(status string, lifetime time.Duration) {
	if m == nil {
		return
	}
	status = label(status)
	m.closed.WithLabelValues(status).Inc()
	if lifetime < 0 {
		lifetime = 0
	}
	m.lifetime.WithLabelValues(status).Observe(lifetime.Seconds())
}

func label(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
