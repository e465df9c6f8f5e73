// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Transport metrics
	BatchesSent     prometheus.Counter
	RequestsSent    prometheus.Counter
	TransportErrors *prometheus.CounterVec
	RateLimitHits   prometheus.Counter
	RequestLatency  prometheus.Histogram

	// Resolver metrics
	KeysResolved   prometheus.Counter
	KeysFailed     prometheus.Counter
	RetriesTotal   prometheus.Counter
	ChunksInFlight prometheus.Gauge

	// Collector metrics
	CatalogPagesFetched  prometheus.Counter
	CandidatesAdmitted   prometheus.Counter
	TradePagesFetched    prometheus.Counter
	TradeEventsCollected prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ItemsScored       *prometheus.CounterVec
	ReportsGenerated  prometheus.Counter

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "siege_market_lab"
	}

	return &Metrics{
		// Transport metrics
		BatchesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "batches_sent_total",
			Help:      "Total number of batched GraphQL POSTs sent",
		}),
		RequestsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_sent_total",
			Help:      "Total number of GraphQL operations sent across all batches",
		}),
		TransportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Total number of transport errors by type",
		}, []string{"error_type"}),
		RateLimitHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit hints honored",
		}),
		RequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_latency_seconds",
			Help:      "Batched POST latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Resolver metrics
		KeysResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "keys_resolved_total",
			Help:      "Total number of keys resolved successfully",
		}),
		KeysFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "keys_failed_total",
			Help:      "Total number of keys that exhausted their retry ceiling",
		}),
		RetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "retries_total",
			Help:      "Total number of retry attempts across all chunks",
		}),
		ChunksInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "chunks_in_flight",
			Help:      "Current number of chunks being resolved",
		}),

		// Collector metrics
		CatalogPagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "pages_fetched_total",
			Help:      "Total number of catalog listing pages fetched",
		}),
		CandidatesAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "candidates_admitted_total",
			Help:      "Total number of candidates passing admission filters",
		}),
		TradePagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradelog",
			Name:      "pages_fetched_total",
			Help:      "Total number of trade log pages fetched",
		}),
		TradeEventsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradelog",
			Name:      "events_collected_total",
			Help:      "Total number of trade events collected",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by mode and status",
		}, []string{"mode", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		ItemsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_scored_total",
			Help:      "Total number of items scored by mode",
		}, []string{"mode"}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful run by mode",
		}, []string{"mode"}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBatchSent records one batched POST carrying n operations.
func RecordBatchSent(n int, latencySeconds float64) {
	DefaultMetrics.BatchesSent.Inc()
	DefaultMetrics.RequestsSent.Add(float64(n))
	DefaultMetrics.RequestLatency.Observe(latencySeconds)
}

// RecordTransportError records a transport error by type.
func RecordTransportError(errorType string) {
	DefaultMetrics.TransportErrors.WithLabelValues(errorType).Inc()
}

// RecordRateLimitHit records one honored rate limit hint.
func RecordRateLimitHit() {
	DefaultMetrics.RateLimitHits.Inc()
}

// RecordKeysResolved records resolver outcomes for one Resolve call.
func RecordKeysResolved(resolved, failed int) {
	DefaultMetrics.KeysResolved.Add(float64(resolved))
	DefaultMetrics.KeysFailed.Add(float64(failed))
}

// RecordRetry increments the retry counter.
func RecordRetry() {
	DefaultMetrics.RetriesTotal.Inc()
}

// RecordCatalogPage records one fetched catalog listing page.
func RecordCatalogPage() {
	DefaultMetrics.CatalogPagesFetched.Inc()
}

// RecordCandidatesAdmitted records how many candidates a scan admitted.
func RecordCandidatesAdmitted(n int) {
	DefaultMetrics.CandidatesAdmitted.Add(float64(n))
}

// RecordTradeLogPage records one fetched trade log page and its decoded
// events.
func RecordTradeLogPage(events int) {
	DefaultMetrics.TradePagesFetched.Inc()
	DefaultMetrics.TradeEventsCollected.Add(float64(events))
}

// ChunkStarted and ChunkFinished track resolver chunks in flight.
func ChunkStarted() {
	DefaultMetrics.ChunksInFlight.Inc()
}

// ChunkFinished marks one resolver chunk as done.
func ChunkFinished() {
	DefaultMetrics.ChunksInFlight.Dec()
}

// RecordUptimeTick adds elapsed seconds to the uptime counter.
func RecordUptimeTick(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(mode, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordItemsScored records the number of items a run scored.
func RecordItemsScored(mode string, n int) {
	DefaultMetrics.ItemsScored.WithLabelValues(mode).Add(float64(n))
}

// RecordReportGenerated increments the reports generated counter and marks
// the mode's last successful run.
func RecordReportGenerated(mode string, unixTime float64) {
	DefaultMetrics.ReportsGenerated.Inc()
	DefaultMetrics.LastSuccessfulRun.WithLabelValues(mode).Set(unixTime)
}
