// Package metrics exposes Prometheus instrumentation for the analytics
// core. Each Registry wraps a private prometheus.Registry so independent
// engines never collide on metric registration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all investigation metrics.
type Registry struct {
	registry *prometheus.Registry

	InvestigationsTotal   *prometheus.CounterVec
	InvestigationDuration *prometheus.HistogramVec
	RecordsSkippedTotal   prometheus.Counter

	ClusterAnalysesTotal     *prometheus.CounterVec
	ClusterExpansionDuration prometheus.Histogram
	ClusterNodesVisited      prometheus.Histogram
	ClusterTruncatedTotal    prometheus.Counter
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.InvestigationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipdrlens_investigations_total",
			Help: "Total number of subject investigations",
		},
		[]string{"status"},
	)

	r.InvestigationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipdrlens_investigation_duration_seconds",
			Help:    "Investigation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"status"},
	)

	r.RecordsSkippedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ipdrlens_records_skipped_total",
			Help: "Total number of malformed records skipped during aggregation",
		},
	)

	r.ClusterAnalysesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipdrlens_cluster_analyses_total",
			Help: "Total number of network cluster analyses",
		},
		[]string{"status"},
	)

	r.ClusterExpansionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ipdrlens_cluster_expansion_duration_seconds",
			Help:    "Cluster BFS expansion duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
	)

	r.ClusterNodesVisited = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ipdrlens_cluster_nodes_visited",
			Help:    "Number of subjects discovered per cluster expansion",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 10000},
		},
	)

	r.ClusterTruncatedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ipdrlens_cluster_truncated_total",
			Help: "Cluster expansions cut short by a timeout or node cap",
		},
	)

	return r
}

// Registry returns the underlying prometheus registry for exposition.
func (r *Registry) Registry() *prometheus.Registry {
	return r.registry
}

// RecordInvestigation records one investigation outcome.
func (r *Registry) RecordInvestigation(status string, duration time.Duration, skipped int) {
	r.InvestigationsTotal.WithLabelValues(status).Inc()
	r.InvestigationDuration.WithLabelValues(status).Observe(duration.Seconds())
	if skipped > 0 {
		r.RecordsSkippedTotal.Add(float64(skipped))
	}
}

// RecordClusterAnalysis records one cluster analysis outcome.
func (r *Registry) RecordClusterAnalysis(status string, duration time.Duration, nodes int, truncated bool) {
	r.ClusterAnalysesTotal.WithLabelValues(status).Inc()
	r.ClusterExpansionDuration.Observe(duration.Seconds())
	r.ClusterNodesVisited.Observe(float64(nodes))
	if truncated {
		r.ClusterTruncatedTotal.Inc()
	}
}
