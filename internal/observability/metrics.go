package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "waterwatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Core operation metrics.
	OperationRequests *prometheus.CounterVec   // labels: operation, outcome={success,<error kind>}
	OperationDuration *prometheus.HistogramVec // labels: operation

	// Imagery pipeline metrics.
	ScenesHarmonized *prometheus.CounterVec // labels: sensor
	ScenesDropped    *prometheus.CounterVec // labels: sensor, reason
	PondsByClass     *prometheus.GaugeVec   // labels: class

	// Backend metrics.
	BackendDuration *prometheus.HistogramVec // labels: endpoint
	BackendRetries  *prometheus.CounterVec   // labels: endpoint
	AuxCache        *prometheus.CounterVec   // labels: layer, result={hit,miss}

	// Snapshot publishing metrics.
	ClassificationsPublished prometheus.Counter
	PublishEnabled           prometheus.Gauge

	// Refresh loop metrics.
	RefreshRunning  prometheus.Gauge
	RefreshFailures prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		OperationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_requests_total",
			Help:      "Core operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of a core operation from request to payload.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		ScenesHarmonized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_harmonized_total",
			Help:      "Scenes that entered the merged stack, by sensor.",
		}, []string{"sensor"}),
		ScenesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_dropped_total",
			Help:      "Scenes excluded from the merged stack, by sensor and reason.",
		}, []string{"sensor", "reason"}),
		PondsByClass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ponds_by_class",
			Help:      "Ponds per class in the latest classification.",
		}, []string{"class"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Compute backend request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		BackendRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_retries_total",
			Help:      "Compute backend requests retried after a transient failure.",
		}, []string{"endpoint"}),
		AuxCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aux_cache_total",
			Help:      "Auxiliary layer cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		ClassificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_published_total",
			Help:      "Pond classifications written to the event topic.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_enabled",
			Help:      "1 when classification publishing is enabled, 0 otherwise.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_running",
			Help:      "1 while the reclassification loop is running, 0 otherwise.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Scheduled classifications that failed and were retried.",
		}),
	}

	prometheus.MustRegister(
		m.OperationRequests,
		m.OperationDuration,
		m.ScenesHarmonized,
		m.ScenesDropped,
		m.PondsByClass,
		m.BackendDuration,
		m.BackendRetries,
		m.AuxCache,
		m.ClassificationsPublished,
		m.PublishEnabled,
		m.RefreshRunning,
		m.RefreshFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		OperationRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "operation_requests_total"}, []string{"operation", "outcome"}),
		OperationDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "operation_duration_seconds"}, []string{"operation"}),
		ScenesHarmonized:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "scenes_harmonized_total"}, []string{"sensor"}),
		ScenesDropped:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "scenes_dropped_total"}, []string{"sensor", "reason"}),
		PondsByClass:             prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "ponds_by_class"}, []string{"class"}),
		BackendDuration:          prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "backend_request_duration_seconds"}, []string{"endpoint"}),
		BackendRetries:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "backend_retries_total"}, []string{"endpoint"}),
		AuxCache:                 prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "aux_cache_total"}, []string{"layer", "result"}),
		ClassificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "classifications_published_total"}),
		PublishEnabled:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "publish_enabled"}),
		RefreshRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "refresh_running"}),
		RefreshFailures:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "refresh_failures_total"}),
	}
}
