// Package metrics exposes Prometheus instrumentation for the resolution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the engine.
// All record methods are safe to call on a nil receiver so components can
// run uninstrumented.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec // labels: outcome={match,no_match,error}
	ProviderDuration prometheus.Histogram

	CacheLookups *prometheus.CounterVec // labels: tier={fast,persisted,batch}, result={hit,miss}
	Resolutions  *prometheus.CounterVec // labels: status={cached,resolved,unresolved}

	BatchDuration prometheus.Histogram
	BatchFastPath prometheus.Counter
	SeededSites   prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "provider_requests_total",
			Help:      "Geocoding provider requests by outcome.",
		}, []string{"outcome"}),
		ProviderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atlas",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider HTTP request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "resolutions_total",
			Help:      "Site resolutions by terminal status.",
		}, []string{"status"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atlas",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete batch resolution run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		BatchFastPath: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "batch_fastpath_total",
			Help:      "Batch runs served entirely from the aggregate cache.",
		}),
		SeededSites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "seeded_total",
			Help:      "Cache entries written by manual seeding.",
		}),
	}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheLookups,
		m.Resolutions,
		m.BatchDuration,
		m.BatchFastPath,
		m.SeededSites,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveProviderRequest records one provider attempt and its duration.
func (m *Metrics) ObserveProviderRequest(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(outcome).Inc()
	m.ProviderDuration.Observe(seconds)
}

// RecordCacheLookup records one cache lookup against a tier.
func (m *Metrics) RecordCacheLookup(tier, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordResolution records one terminal resolution status.
func (m *Metrics) RecordResolution(status string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(status).Inc()
}

// ObserveBatch records the duration of a full batch run.
func (m *Metrics) ObserveBatch(seconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(seconds)
}

// RecordFastPath records a batch served from the aggregate cache.
func (m *Metrics) RecordFastPath() {
	if m == nil {
		return
	}
	m.BatchFastPath.Inc()
}

// RecordSeeded records manually seeded cache entries.
func (m *Metrics) RecordSeeded(n int) {
	if m == nil {
		return
	}
	m.SeededSites.Add(float64(n))
}
