// Package metrics provides Prometheus metrics for the match session service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Session metrics
	sessionsOpen     prometheus.Gauge
	eventsRecorded   *prometheus.CounterVec
	eventsEdited     prometheus.Counter
	eventsRemoved    prometheus.Counter
	eventsDuplicate  prometheus.Counter
	scoreUnderflows  prometheus.Counter
	clockTicks       prometheus.Counter
	clockTransitions *prometheus.CounterVec
	domainErrors     *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics
	repositoryRecordsTotal  prometheus.Gauge
	repositorySaveLatency   prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryRecordsByKind *prometheus.GaugeVec

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount       prometheus.Gauge
	workerActiveCount prometheus.Gauge
	persistJobs       *prometheus.CounterVec
	persistRetries    prometheus.Counter
	persistLatency    prometheus.Histogram

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leaguemaker",
		subsystem:        "matches",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.sessionsOpen = m.gauge("sessions_open", "Number of open match recording sessions")
	m.eventsRecorded = m.counterVec("events_recorded_total", "Match events recorded by type", "type")
	m.eventsEdited = m.counter("events_edited_total", "Match events edited")
	m.eventsRemoved = m.counter("events_removed_total", "Match events removed")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Event submissions dropped as duplicate request ids")
	m.scoreUnderflows = m.counter("score_underflows_total", "Score decrements that would have gone below zero")
	m.clockTicks = m.counter("clock_ticks_total", "Clock ticks that advanced a running clock")
	m.clockTransitions = m.counterVec("clock_transitions_total", "Clock transitions by action", "action")
	m.domainErrors = m.counterVec("domain_errors_total", "Rejected session operations by error kind", "kind")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryRecordsTotal = m.gauge("repository_records_total", "Stored match records")
	m.repositorySaveLatency = m.histogram("repository_save_latency_milliseconds", "Match record save latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Match record query latency in milliseconds")
	m.repositoryRecordsByKind = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: "repository_events_total",
		Help: "Stored match events by type",
	}, []string{"type"})

	m.queueSize = m.gauge("queue_size", "Current size of the persist queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the persist queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Persist queue fill ratio")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Persist jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Persist jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Persist jobs rejected by a full or closed queue")

	m.workerCount = m.gauge("worker_count", "Number of persist workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Persist workers currently handling a job")
	m.persistJobs = m.counterVec("persist_jobs_total", "Persist jobs by outcome", "outcome")
	m.persistRetries = m.counter("persist_retries_total", "Persist attempts retried after a store error")
	m.persistLatency = m.histogram("persist_latency_milliseconds", "Time from enqueue to stored record in milliseconds")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Manager methods. Every recorder is a no-op when the manager is disabled.

func (m *Manager) UpdateSessionsOpen(n int) {
	if m.enabled {
		m.sessionsOpen.Set(float64(n))
	}
}

func (m *Manager) RecordEventRecorded(eventType string) {
	if m.enabled {
		m.eventsRecorded.WithLabelValues(eventType).Inc()
	}
}

func (m *Manager) RecordEventEdited() {
	if m.enabled {
		m.eventsEdited.Inc()
	}
}

func (m *Manager) RecordEventRemoved() {
	if m.enabled {
		m.eventsRemoved.Inc()
	}
}

func (m *Manager) RecordEventDuplicate() {
	if m.enabled {
		m.eventsDuplicate.Inc()
	}
}

func (m *Manager) RecordScoreUnderflow() {
	if m.enabled {
		m.scoreUnderflows.Inc()
	}
}

func (m *Manager) RecordClockTick() {
	if m.enabled {
		m.clockTicks.Inc()
	}
}

func (m *Manager) RecordClockTransition(action string) {
	if m.enabled {
		m.clockTransitions.WithLabelValues(action).Inc()
	}
}

func (m *Manager) RecordDomainError(kind string) {
	if m.enabled {
		m.domainErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if m.enabled {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if m.enabled {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

func (m *Manager) UpdateRepositoryRecordsTotal(count int) {
	if m.enabled {
		m.repositoryRecordsTotal.Set(float64(count))
	}
}

func (m *Manager) UpdateRepositoryEventsByType(eventType string, count int) {
	if m.enabled {
		m.repositoryRecordsByKind.WithLabelValues(eventType).Set(float64(count))
	}
}

func (m *Manager) RecordRepositorySaveLatency(latencyMs float64) {
	if m.enabled {
		m.repositorySaveLatency.Observe(latencyMs)
	}
}

func (m *Manager) RecordRepositoryQueryLatency(latencyMs float64) {
	if m.enabled {
		m.repositoryQueryLatency.Observe(latencyMs)
	}
}

func (m *Manager) UpdateQueueSize(size int) {
	if m.enabled {
		m.queueSize.Set(float64(size))
	}
}

func (m *Manager) UpdateQueueCapacity(capacity int) {
	if m.enabled {
		m.queueCapacity.Set(float64(capacity))
	}
}

func (m *Manager) UpdateQueueUtilization(ratio float64) {
	if m.enabled {
		m.queueUtilization.Set(ratio)
	}
}

func (m *Manager) RecordQueueEnqueue() {
	if m.enabled {
		m.queueEnqueueRate.Inc()
	}
}

func (m *Manager) RecordQueueDequeue() {
	if m.enabled {
		m.queueDequeueRate.Inc()
	}
}

func (m *Manager) RecordQueueEnqueueError() {
	if m.enabled {
		m.queueEnqueueErrors.Inc()
	}
}

func (m *Manager) UpdateWorkerCount(count int) {
	if m.enabled {
		m.workerCount.Set(float64(count))
	}
}

func (m *Manager) UpdateWorkerActiveCount(count int) {
	if m.enabled {
		m.workerActiveCount.Set(float64(count))
	}
}

func (m *Manager) RecordPersistJob(outcome string) {
	if m.enabled {
		m.persistJobs.WithLabelValues(outcome).Inc()
	}
}

func (m *Manager) RecordPersistRetry() {
	if m.enabled {
		m.persistRetries.Inc()
	}
}

func (m *Manager) RecordPersistLatency(latencyMs float64) {
	if m.enabled {
		m.persistLatency.Observe(latencyMs)
	}
}

func (m *Manager) RecordErrorByComponent(component, errorType string) {
	if m.enabled {
		m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if m.enabled {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

func (m *Manager) UpdateSystemGoroutineCount(count int) {
	if m.enabled {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// Global recorders backed by the process-wide manager.

// UpdateSessionsOpen sets the number of open sessions.
func UpdateSessionsOpen(n int) { globalManager.UpdateSessionsOpen(n) }

// RecordEventRecorded counts a recorded event of eventType.
func RecordEventRecorded(eventType string) { globalManager.RecordEventRecorded(eventType) }

// RecordEventEdited counts an edited event.
func RecordEventEdited() { globalManager.RecordEventEdited() }

// RecordEventRemoved counts a removed event.
func RecordEventRemoved() { globalManager.RecordEventRemoved() }

// RecordEventDuplicate counts a submission dropped by request id.
func RecordEventDuplicate() { globalManager.RecordEventDuplicate() }

// RecordScoreUnderflow counts a score decrement that hit the zero floor.
func RecordScoreUnderflow() { globalManager.RecordScoreUnderflow() }

// RecordClockTick counts an effective clock tick.
func RecordClockTick() { globalManager.RecordClockTick() }

// RecordClockTransition counts a clock action.
func RecordClockTransition(action string) { globalManager.RecordClockTransition(action) }

// RecordDomainError counts a rejected operation by error kind.
func RecordDomainError(kind string) { globalManager.RecordDomainError(kind) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, durationMs)
}

// UpdateRepositoryRecordsTotal sets the stored record count.
func UpdateRepositoryRecordsTotal(count int) { globalManager.UpdateRepositoryRecordsTotal(count) }

// UpdateRepositoryEventsByType sets the stored event count for eventType.
func UpdateRepositoryEventsByType(eventType string, count int) {
	globalManager.UpdateRepositoryEventsByType(eventType, count)
}

// RecordRepositorySaveLatency records a save latency in milliseconds.
func RecordRepositorySaveLatency(latencyMs float64) { globalManager.RecordRepositorySaveLatency(latencyMs) }

// RecordRepositoryQueryLatency records a query latency in milliseconds.
func RecordRepositoryQueryLatency(latencyMs float64) { globalManager.RecordRepositoryQueryLatency(latencyMs) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.UpdateQueueSize(size) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.UpdateQueueCapacity(capacity) }

// UpdateQueueUtilization sets the queue fill ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.UpdateQueueUtilization(ratio) }

// RecordQueueEnqueue counts an enqueued job.
func RecordQueueEnqueue() { globalManager.RecordQueueEnqueue() }

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() { globalManager.RecordQueueDequeue() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { globalManager.RecordQueueEnqueueError() }

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.UpdateWorkerCount(count) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.UpdateWorkerActiveCount(count) }

// RecordPersistJob counts a finished persist job by outcome.
func RecordPersistJob(outcome string) { globalManager.RecordPersistJob(outcome) }

// RecordPersistRetry counts a retried persist attempt.
func RecordPersistRetry() { globalManager.RecordPersistRetry() }

// RecordPersistLatency records enqueue-to-stored latency in milliseconds.
func RecordPersistLatency(latencyMs float64) { globalManager.RecordPersistLatency(latencyMs) }

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
