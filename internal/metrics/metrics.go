// Package metrics exposes Prometheus instrumentation for the marketplace syncer,
// the query gateway and the intent relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// View names used as label values.
const (
	ViewListings = "listings"
	ViewActivity = "activity"
	ViewStats    = "stats"
)

// Metrics contains all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	RefreshDuration  *prometheus.HistogramVec
	RefreshErrors    *prometheus.CounterVec
	ActiveListings   prometheus.Gauge
	DroppedListings  prometheus.Counter
	OutOfBandRefresh prometheus.Counter
	Intents          *prometheus.CounterVec
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RefreshDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carmarket_refresh_duration_seconds",
			Help:    "Time to rebuild a marketplace view from the full node",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"view"}),

		RefreshErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carmarket_refresh_errors_total",
			Help: "Refreshes abandoned with the previous view retained",
		}, []string{"view"}),

		ActiveListings: f.NewGauge(prometheus.GaugeOpts{
			Name: "carmarket_active_listings",
			Help: "Listings that resolved on the last successful reconciliation",
		}),

		DroppedListings: f.NewCounter(prometheus.CounterOpts{
			Name: "carmarket_unresolved_listings_total",
			Help: "Listed events whose listing object no longer resolves",
		}),

		OutOfBandRefresh: f.NewCounter(prometheus.CounterOpts{
			Name: "carmarket_out_of_band_refreshes_total",
			Help: "Refreshes triggered by a confirmed transaction rather than the timer",
		}),

		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carmarket_intents_total",
			Help: "Transaction intents by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// ObserveRefresh records the duration and, on failure, the error of one view refresh.
func (m *Metrics) ObserveRefresh(view string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RefreshDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	if err != nil {
		m.RefreshErrors.WithLabelValues(view).Inc()
	}
}

// RecordListings records the outcome of a reconciliation.
func (m *Metrics) RecordListings(active, dropped int) {
	if m == nil {
		return
	}
	m.ActiveListings.Set(float64(active))
	m.DroppedListings.Add(float64(dropped))
}

// RecordOutOfBand counts a refresh requested outside the timer cadence.
func (m *Metrics) RecordOutOfBand() {
	if m == nil {
		return
	}
	m.OutOfBandRefresh.Inc()
}

// RecordIntent counts an intent transition.
func (m *Metrics) RecordIntent(kind, outcome string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
