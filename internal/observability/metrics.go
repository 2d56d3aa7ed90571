package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects application metrics for the search core.
//
// Tracked concerns:
//   - ingestion throughput and latency per file type
//   - search latency and per-strategy contribution
//   - suggestion query latency (must stay under the typing cadence)
//   - reindex queue depth and task outcomes
//   - external dependency failures (embedding, OCR, LLM)
type Metrics struct {
	// IngestCounter counts ingested resources.
	// Labels: file_type, status (success|error)
	IngestCounter *prometheus.CounterVec

	// IngestDuration measures end-to-end ingestion latency in seconds.
	// Labels: file_type
	IngestDuration *prometheus.HistogramVec

	// SearchDuration measures search latency in seconds.
	SearchDuration prometheus.Histogram

	// StrategyDuration measures per-strategy latency in seconds.
	// Labels: strategy
	StrategyDuration *prometheus.HistogramVec

	// StrategyErrors counts degraded strategy executions.
	// Labels: strategy
	StrategyErrors *prometheus.CounterVec

	// SuggestDuration measures autocomplete latency in seconds.
	SuggestDuration prometheus.Histogram

	// ReindexQueueDepth tracks pending reindex events.
	ReindexQueueDepth prometheus.Gauge

	// ReindexCounter counts reindex task outcomes.
	// Labels: status (success|error|superseded)
	ReindexCounter *prometheus.CounterVec

	// DependencyErrors counts external dependency failures.
	// Labels: dependency (embedding|ocr|llm|blob|store|suggest)
	DependencyErrors *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered against the given registerer.
// Tests pass a private registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrove_ingest_total",
			Help: "Total resources ingested by file type and status.",
		}, []string{"file_type", "status"}),

		IngestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "papertrove_ingest_duration_seconds",
			Help:    "End-to-end ingestion latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"file_type"}),

		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "papertrove_search_duration_seconds",
			Help:    "Search request latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		StrategyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "papertrove_search_strategy_duration_seconds",
			Help:    "Per-strategy search latency.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"strategy"}),

		StrategyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrove_search_strategy_errors_total",
			Help: "Search strategies that degraded to an empty contribution.",
		}, []string{"strategy"}),

		SuggestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "papertrove_suggest_duration_seconds",
			Help:    "Autocomplete prefix query latency.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		ReindexQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrove_reindex_queue_depth",
			Help: "Pending reindex events.",
		}),

		ReindexCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrove_reindex_total",
			Help: "Reindex task outcomes.",
		}, []string{"status"}),

		DependencyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrove_dependency_errors_total",
			Help: "External dependency failures by dependency name.",
		}, []string{"dependency"}),
	}
}
