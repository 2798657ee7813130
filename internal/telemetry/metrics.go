// Package telemetry exposes Prometheus instruments for sync and upstream auth.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collie"

// Metrics groups the instruments used by the worker and the upstream client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	newItems      *prometheus.CounterVec
	watermark     prometheus.Gauge
	authExchanges *prometheus.CounterVec
	unauthRetries prometheus.Counter
	tickDuration  *prometheus.HistogramVec
}

// NewMetrics registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "ticks_total",
			Help:      "Sync worker ticks by source mode and result.",
		}, []string{"mode", "result"}),
		newItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "new_items_total",
			Help:      "Newly discovered items reported by the sync worker.",
		}, []string{"mode"}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "watermark_timestamp_seconds",
			Help:      "Last persisted upstream sync watermark as a unix timestamp.",
		}),
		authExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "auth_exchanges_total",
			Help:      "Authentication exchanges against the upstream /auth endpoint.",
		}, []string{"result"}),
		unauthRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "unauthorized_retries_total",
			Help:      "Requests re-issued after a 401 response.",
		}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "tick_duration_seconds",
			Help:      "Duration of sync ticks in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"mode"}),
	}
	m.registry.MustRegister(m.ticks, m.newItems, m.watermark, m.authExchanges, m.unauthRetries, m.tickDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (nil for nil metrics).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordTick(mode string, ok bool, items int, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ticks.WithLabelValues(mode, result).Inc()
	m.newItems.WithLabelValues(mode).Add(float64(items))
	m.tickDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordWatermark(t time.Time) {
	if m == nil {
		return
	}
	m.watermark.Set(float64(t.Unix()))
}

func (m *Metrics) RecordAuthExchange(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.authExchanges.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordUnauthorizedRetry() {
	if m == nil {
		return
	}
	m.unauthRetries.Inc()
}
