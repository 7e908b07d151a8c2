// Package metrics defines the Prometheus metric collectors used by the
// retrieval service and the evaluation runner, and exposes an HTTP handler
// for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RetrievalsTotal      *prometheus.CounterVec
	RetrievalLatency     *prometheus.HistogramVec
	RetrievalResults     *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexedDocuments     prometheus.Gauge
	IndexedTerms         prometheus.Gauge
	FeedbackRevisions    *prometheus.CounterVec
	FeedbackSkippedDocs  prometheus.Counter
	NDCGAtRank           *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RetrievalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vsr_retrievals_total",
				Help: "Total retrievals by strategy and outcome (ok, empty, error).",
			},
			[]string{"strategy", "outcome"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vsr_retrieval_latency_seconds",
				Help:    "Retrieval latency in seconds by strategy and cache status.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"strategy", "cache_status"},
		),
		RetrievalResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vsr_retrieval_results",
				Help:    "Number of documents returned per retrieval.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"strategy"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vsr_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vsr_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vsr_indexed_documents",
				Help: "Documents in the built index.",
			},
		),
		IndexedTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vsr_indexed_terms",
				Help: "Distinct terms in the built index.",
			},
		),
		FeedbackRevisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vsr_feedback_revisions_total",
				Help: "Query revisions from relevance feedback by outcome.",
			},
			[]string{"outcome"},
		),
		FeedbackSkippedDocs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vsr_feedback_skipped_documents_total",
				Help: "Rated documents left out of a revision because their vector had no positive weight.",
			},
		),
		NDCGAtRank: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vsr_ndcg",
				Help: "Average NDCG per rank from the last evaluation run.",
			},
			[]string{"experiment", "rank"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RetrievalsTotal,
		m.RetrievalLatency,
		m.RetrievalResults,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexedDocuments,
		m.IndexedTerms,
		m.FeedbackRevisions,
		m.FeedbackSkippedDocs,
		m.NDCGAtRank,
		m.CircuitBreakerState,
	)

	return m
}

// Handler serves g in the Prometheus exposition format. A nil g serves the
// default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
