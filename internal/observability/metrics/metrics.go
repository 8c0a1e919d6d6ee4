package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the engine's operational counters through a private
// prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	RecordsIngested  *prometheus.CounterVec
	RecordsDropped   *prometheus.CounterVec
	TicksTotal       *prometheus.CounterVec
	TickDuration     *prometheus.HistogramVec
	AlertsSent       *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	EmitFailures     *prometheus.CounterVec
}

// New creates and registers the engine metrics.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pulsewatch"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Records accepted into the sliding window.",
		}, []string{"series"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records dropped before aggregation.",
		}, []string{"series", "reason"}),
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_ticks_total",
			Help:      "Timer ticks processed per series.",
		}, []string{"series"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timer_tick_duration_seconds",
			Help:      "Wall time of one detect/throttle/emit cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"series"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alerts delivered to alert handlers.",
		}, []string{"series"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Ticks skipped because the alert identity was inside its cooldown.",
		}, []string{"series"}),
		EmitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_failures_total",
			Help:      "Failed emissions per sink.",
		}, []string{"series", "sink"}),
	}

	m.registry.MustRegister(
		m.RecordsIngested,
		m.RecordsDropped,
		m.TicksTotal,
		m.TickDuration,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.EmitFailures,
	)
	return m
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
