// Package metrics provides Prometheus metrics for the Backr service.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Suggestions
	suggestionsServed   prometheus.Counter
	suggestionsEmpty    prometheus.Counter
	suggestionFailures  *prometheus.CounterVec
	suggestionLatency   prometheus.Histogram
	candidatePoolSize   prometheus.Histogram
	suggestionsReturned prometheus.Histogram

	// Lock pipeline
	locksEnqueued  prometheus.Counter
	locksDuplicate prometheus.Counter
	locksRejected  prometheus.Counter
	locksSucceeded prometheus.Counter
	locksFailed    prometheus.Counter
	locksSkipped   prometheus.Counter

	// Ledger
	ledgerLatency      *prometheus.HistogramVec
	ledgerCircuitState prometheus.Gauge

	// Operational health
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	totalEntities           prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record* helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // exposed through GetRegistry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "backr",
		subsystem:        "matching",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.suggestionsServed = m.counter("suggestions_served_total", "Suggestion requests answered with at least one suggestion")
	m.suggestionsEmpty = m.counter("suggestions_empty_total", "Suggestion requests answered with an empty list")
	m.suggestionFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "suggestion_failures_total",
		Help: "Suggestion computations degraded to an empty result, by stage",
	}, []string{"stage"})
	m.suggestionLatency = m.histogram("suggestion_latency_milliseconds",
		"End-to-end suggestion computation latency in milliseconds", m.histogramBuckets)
	m.candidatePoolSize = m.histogram("candidate_pool_size",
		"Number of candidates scored per suggestion request",
		prometheus.ExponentialBuckets(1, 2, 12))
	m.suggestionsReturned = m.histogram("suggestions_returned",
		"Number of suggestions returned per request",
		prometheus.LinearBuckets(0, 1, 11))

	m.locksEnqueued = m.counter("lock_jobs_enqueued_total", "Lock jobs accepted into the queue")
	m.locksDuplicate = m.counter("lock_jobs_duplicate_total", "Lock requests acknowledged as duplicates")
	m.locksRejected = m.counter("lock_jobs_rejected_total", "Lock requests rejected because the queue was full")
	m.locksSucceeded = m.counter("lock_jobs_locked_total", "Backings moved to LOCKED after a ledger confirmation")
	m.locksFailed = m.counter("lock_jobs_failed_total", "Lock jobs that failed at the ledger or store")
	m.locksSkipped = m.counter("lock_jobs_skipped_total", "Lock jobs dropped because the backing was no longer PLEDGED")

	m.ledgerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "ledger_call_duration_milliseconds",
		Help:    "Ledger API call latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"operation", "outcome"})
	m.ledgerCircuitState = m.gauge("ledger_circuit_state", "Ledger circuit breaker state (0 closed, 1 half-open, 2 open)")

	m.queueSize = m.gauge("queue_size", "Current number of pending lock jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the lock job queue")
	m.workerCount = m.gauge("worker_count", "Number of running lock workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Lock job processing latency in milliseconds", m.histogramBuckets)
	m.totalEntities = m.gauge("total_entities", "Number of entities known to the store")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "repository_query_latency_milliseconds",
		Help:    "Store operation latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"operation"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "errors_by_component_total",
		Help: "Errors by component and error type",
	}, []string{"component", "error_type"})
}

// RecordSuggestionsServed records the size of a suggestion response.
func RecordSuggestionsServed(count int) {
	if count == 0 {
		globalManager.suggestionsEmpty.Inc()
	} else {
		globalManager.suggestionsServed.Inc()
	}
	globalManager.suggestionsReturned.Observe(float64(count))
}

// RecordSuggestionFailure counts a suggestion computation that degraded at stage.
func RecordSuggestionFailure(stage string) {
	globalManager.suggestionFailures.WithLabelValues(stage).Inc()
}

// RecordSuggestionLatency records suggestion latency in milliseconds.
func RecordSuggestionLatency(latencyMs float64) {
	globalManager.suggestionLatency.Observe(latencyMs)
}

// RecordCandidatePoolSize records how many candidates were scored.
func RecordCandidatePoolSize(size int) {
	globalManager.candidatePoolSize.Observe(float64(size))
}

// RecordLockEnqueued increments the accepted lock jobs counter.
func RecordLockEnqueued() { globalManager.locksEnqueued.Inc() }

// RecordLockDuplicate increments the duplicate lock requests counter.
func RecordLockDuplicate() { globalManager.locksDuplicate.Inc() }

// RecordLockRejected increments the backpressure rejections counter.
func RecordLockRejected() { globalManager.locksRejected.Inc() }

// RecordLockSucceeded increments the locked backings counter.
func RecordLockSucceeded() { globalManager.locksSucceeded.Inc() }

// RecordLockFailed increments the failed lock jobs counter.
func RecordLockFailed() { globalManager.locksFailed.Inc() }

// RecordLockSkipped increments the stale lock jobs counter.
func RecordLockSkipped() { globalManager.locksSkipped.Inc() }

// RecordLedgerLatency records a ledger call. outcome is "ok" or "error".
func RecordLedgerLatency(operation, outcome string, latencyMs float64) {
	globalManager.ledgerLatency.WithLabelValues(operation, outcome).Observe(latencyMs)
}

// UpdateLedgerCircuitState publishes the breaker state.
func UpdateLedgerCircuitState(state int) {
	globalManager.ledgerCircuitState.Set(float64(state))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records lock job processing time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// UpdateTotalEntities sets the entity count.
func UpdateTotalEntities(count int) {
	globalManager.totalEntities.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryQueryLatency records a store operation latency in milliseconds.
func RecordRepositoryQueryLatency(operation string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordErrorByComponent records an error by component and error type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RegisterRuntimeCollectors adds Go runtime and process collectors to the
// custom registry. Calling it twice is a no-op.
func RegisterRuntimeCollectors() error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := customRegistry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return fmt.Errorf("register runtime collector: %w", err)
		}
	}
	return nil
}
