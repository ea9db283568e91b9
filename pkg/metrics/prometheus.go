// Package metrics provides Prometheus metrics for the vigil telemetry engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion and evaluation
	eventsIngested     prometheus.Counter
	eventsEvaluated    prometheus.Counter
	evaluationNoOps    prometheus.Counter
	evaluationErrors   prometheus.Counter
	evaluationLatency  prometheus.Histogram
	rulesMatched       *prometheus.CounterVec
	violationsRecorded *prometheus.CounterVec

	// Score ledger and activity pipeline
	scoreSubmissions   prometheus.Counter
	scoreImprovements  prometheus.Counter
	scoreSubmitLatency prometheus.Histogram
	activitiesEmitted  *prometheus.CounterVec
	activityClaimsLost prometheus.Counter

	// Poller
	pollerCycles          prometheus.Counter
	pollerEventsProcessed prometheus.Counter
	pollerItemErrors      prometheus.Counter
	pollerCycleDuration   prometheus.Histogram

	// Document store
	storeConflictRetries prometheus.Counter
	storeErrors          prometheus.Counter
	storeOpLatency       prometheus.Histogram

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vigil",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_ingested_total",
		Help:      "Total number of telemetry events accepted into the event store",
	})

	m.eventsEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_evaluated_total",
		Help:      "Total number of events evaluated against active rules",
	})

	m.evaluationNoOps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_noops_total",
		Help:      "Total number of evaluation calls skipped because the event was already evaluated",
	})

	m.evaluationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_errors_total",
		Help:      "Total number of evaluation attempts that failed with a store error",
	})

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_latency_milliseconds",
		Help:      "Histogram of single-event evaluation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.rulesMatched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rules_matched_total",
		Help:      "Total number of rule matches by evaluation mode",
	}, []string{"mode"})

	m.violationsRecorded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "violations_recorded_total",
		Help:      "Total number of violation upserts by severity",
	}, []string{"severity"})

	m.scoreSubmissions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_submissions_total",
		Help:      "Total number of score submissions received",
	})

	m.scoreImprovements = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_improvements_total",
		Help:      "Total number of submissions that genuinely raised a stored score",
	})

	m.scoreSubmitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_submit_latency_milliseconds",
		Help:      "Histogram of score submission latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.activitiesEmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "activities_emitted_total",
		Help:      "Total number of player activity records appended by type",
	}, []string{"type"})

	m.activityClaimsLost = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "activity_claims_lost_total",
		Help:      "Total number of dedup guard claims lost to a concurrent winner",
	})

	m.pollerCycles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poller_cycles_total",
		Help:      "Total number of poller drain cycles",
	})

	m.pollerEventsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poller_events_processed_total",
		Help:      "Total number of events processed by the poller",
	})

	m.pollerItemErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poller_item_errors_total",
		Help:      "Total number of per-event failures inside drain cycles",
	})

	m.pollerCycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poller_cycle_duration_milliseconds",
		Help:      "Histogram of drain cycle duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	})

	m.storeConflictRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_conflict_retries_total",
		Help:      "Total number of transaction retries due to write conflicts",
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of document store operation failures",
	})

	m.storeOpLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_op_latency_milliseconds",
		Help:      "Histogram of document store operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status"})
}

// RecordEventIngested increments the ingested events counter.
func RecordEventIngested() {
	globalManager.eventsIngested.Inc()
}

// RecordEventEvaluated increments the evaluated events counter.
func RecordEventEvaluated() {
	globalManager.eventsEvaluated.Inc()
}

// RecordEvaluationNoOp increments the already-evaluated skip counter.
func RecordEvaluationNoOp() {
	globalManager.evaluationNoOps.Inc()
}

// RecordEvaluationError increments the evaluation error counter.
func RecordEvaluationError() {
	globalManager.evaluationErrors.Inc()
}

// RecordEvaluationLatency records single-event evaluation latency in milliseconds.
func RecordEvaluationLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordRuleMatched increments the rule match counter for a mode ("count" or "range").
func RecordRuleMatched(mode string) {
	globalManager.rulesMatched.WithLabelValues(mode).Inc()
}

// RecordViolation increments the violation counter for a severity.
func RecordViolation(severity string) {
	globalManager.violationsRecorded.WithLabelValues(severity).Inc()
}

// RecordScoreSubmission increments the score submission counter.
func RecordScoreSubmission() {
	globalManager.scoreSubmissions.Inc()
}

// RecordScoreImprovement increments the genuine-increase counter.
func RecordScoreImprovement() {
	globalManager.scoreImprovements.Inc()
}

// RecordScoreSubmitLatency records score submission latency in milliseconds.
func RecordScoreSubmitLatency(latencyMs float64) {
	globalManager.scoreSubmitLatency.Observe(latencyMs)
}

// RecordActivityEmitted increments the activity counter for a type.
func RecordActivityEmitted(activityType string) {
	globalManager.activitiesEmitted.WithLabelValues(activityType).Inc()
}

// RecordActivityClaimLost increments the lost-claim counter.
func RecordActivityClaimLost() {
	globalManager.activityClaimsLost.Inc()
}

// RecordPollerCycle increments the drain cycle counter.
func RecordPollerCycle() {
	globalManager.pollerCycles.Inc()
}

// RecordPollerEventsProcessed adds to the poller processed counter.
func RecordPollerEventsProcessed(n int) {
	globalManager.pollerEventsProcessed.Add(float64(n))
}

// RecordPollerItemError increments the per-item failure counter.
func RecordPollerItemError() {
	globalManager.pollerItemErrors.Inc()
}

// RecordPollerCycleDuration records drain cycle duration in milliseconds.
func RecordPollerCycleDuration(durationMs float64) {
	globalManager.pollerCycleDuration.Observe(durationMs)
}

// RecordStoreConflictRetry increments the transaction conflict retry counter.
func RecordStoreConflictRetry() {
	globalManager.storeConflictRetries.Inc()
}

// RecordStoreError increments the store failure counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// RecordStoreOpLatency records document store operation latency in milliseconds.
func RecordStoreOpLatency(latencyMs float64) {
	globalManager.storeOpLatency.Observe(latencyMs)
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
