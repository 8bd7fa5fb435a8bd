// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's instrument set. A nil *Metrics is a no-op so
// callers never need to branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	catalogTools     *prometheus.GaugeVec
	activeSessions   prometheus.Gauge
}

// New creates the instrument set on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_dispatches_total",
				Help: "Total number of tool dispatch attempts",
			},
			[]string{"service", "result"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_dispatch_duration_seconds",
				Help:    "Duration of tool dispatches in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "result"},
		),
		catalogTools: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolgate_catalog_tools",
				Help: "Number of catalog tools per backend",
			},
			[]string{"service"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_active_sessions",
				Help: "Current number of active caller sessions",
			},
		),
	}
}

// ObserveDispatch records one dispatch outcome.
func (m *Metrics) ObserveDispatch(service string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.dispatches.WithLabelValues(service, result).Inc()
	m.dispatchDuration.WithLabelValues(service, result).Observe(duration.Seconds())
}

// SetCatalogSize records the per-backend catalog entry count.
func (m *Metrics) SetCatalogSize(service string, count int) {
	if m == nil {
		return
	}
	m.catalogTools.WithLabelValues(service).Set(float64(count))
}

// SetActiveSessions records the current session count.
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

// Handler serves the scrape endpoint for this instrument set.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
