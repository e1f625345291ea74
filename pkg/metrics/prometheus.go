// Package metrics provides Prometheus metrics for the trust & matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default bucket layouts.
var (
	trustScoreBuckets = prometheus.LinearBuckets(0, 10, 11)   //nolint:gochecknoglobals // bucket layout
	matchScoreBuckets = prometheus.LinearBuckets(0, 0.1, 11)  //nolint:gochecknoglobals // bucket layout
	poolSizeBuckets   = prometheus.ExponentialBuckets(1, 4, 8) //nolint:gochecknoglobals // bucket layout
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Trust metrics
	trustCalculations *prometheus.CounterVec
	trustScore        prometheus.Histogram
	trustLevelChanges *prometheus.CounterVec
	subjectsTotal     prometheus.Gauge

	// Fraud metrics
	fraudAlertsRaised     *prometheus.CounterVec
	fraudAlertsSuppressed *prometheus.CounterVec
	alertTransitions      *prometheus.CounterVec
	activeAlerts          prometheus.Gauge

	// Matching metrics
	matchScore             prometheus.Histogram
	recommendationLatency  *prometheus.HistogramVec
	recommendationPoolSize *prometheus.HistogramVec

	// Activity ingestion
	activityEvents     *prometheus.CounterVec
	activityDuplicates prometheus.Counter

	// Notifications
	notifications *prometheus.CounterVec

	// Repository metrics
	repositoryLatency *prometheus.HistogramVec
	repositoryRecords *prometheus.GaugeVec

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "trustmatch",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.trustCalculations = auto.NewCounterVec(m.counter("trust_calculations_total", "Trust score calculations by resulting level and reason"), []string{"level", "reason"})
	m.trustScore = auto.NewHistogram(m.histogram("trust_score", "Distribution of computed trust scores", trustScoreBuckets))
	m.trustLevelChanges = auto.NewCounterVec(m.counter("trust_level_changes_total", "Trust level changes between consecutive calculations"), []string{"from", "to"})
	m.subjectsTotal = auto.NewGauge(m.gauge("subjects_total", "Number of stored subject profiles"))

	m.fraudAlertsRaised = auto.NewCounterVec(m.counter("fraud_alerts_raised_total", "Fraud alerts raised by pattern and risk level"), []string{"pattern", "risk_level"})
	m.fraudAlertsSuppressed = auto.NewCounterVec(m.counter("fraud_alerts_suppressed_total", "Findings suppressed because an active alert already covers them"), []string{"pattern"})
	m.alertTransitions = auto.NewCounterVec(m.counter("fraud_alert_transitions_total", "Administrative alert status transitions"), []string{"from", "to"})
	m.activeAlerts = auto.NewGauge(m.gauge("fraud_alerts_active", "Alerts currently open or under investigation"))

	m.matchScore = auto.NewHistogram(m.histogram("match_score", "Distribution of candidate/job match scores", matchScoreBuckets))
	m.recommendationLatency = auto.NewHistogramVec(m.histogram("recommendation_latency_milliseconds", "Time to score, filter and rank a pool", nil), []string{"kind"})
	m.recommendationPoolSize = auto.NewHistogramVec(m.histogram("recommendation_pool_size", "Number of pool members scored per ranking call", poolSizeBuckets), []string{"kind"})

	m.activityEvents = auto.NewCounterVec(m.counter("activity_events_total", "Activity events processed by kind"), []string{"kind"})
	m.activityDuplicates = auto.NewCounter(m.counter("activity_duplicates_total", "Activity events rejected as already seen"))

	m.notifications = auto.NewCounterVec(m.counter("notifications_total", "Notifications handed to the publisher by kind and result"), []string{"kind", "result"})

	m.repositoryLatency = auto.NewHistogramVec(m.histogram("repository_latency_milliseconds", "Repository operation latency", nil), []string{"backend", "operation"})
	m.repositoryRecords = auto.NewGaugeVec(m.gauge("repository_records", "Stored records by kind"), []string{"kind"})

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current size of the activity queue (backlog indicator)"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum capacity of the activity queue"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue utilization as a ratio (0.0 to 1.0)"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueue_total", "Total number of events enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeue_total", "Total number of events dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Total number of enqueue errors (backpressure)"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("queue_processing_latency_milliseconds", "Time an event spends waiting in the queue", nil))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured number of workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers currently processing an event"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Worker processing latency", nil))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Events that failed processing"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counter("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total", "Errors by HTTP endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogram("error_latency_milliseconds", "Latency of requests that ended in an error", nil), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Trust Metrics Functions.

// RecordTrustCalculation counts one calculation and observes its score.
func RecordTrustCalculation(level, reason string, score int) {
	globalManager.trustCalculations.WithLabelValues(level, reason).Inc()
	globalManager.trustScore.Observe(float64(score))
}

// RecordTrustLevelChange counts a level change.
func RecordTrustLevelChange(from, to string) {
	globalManager.trustLevelChanges.WithLabelValues(from, to).Inc()
}

// UpdateSubjectsTotal sets the stored profile count.
func UpdateSubjectsTotal(count int) {
	globalManager.subjectsTotal.Set(float64(count))
}

// Fraud Metrics Functions.

// RecordFraudAlertRaised counts a newly raised alert.
func RecordFraudAlertRaised(pattern, riskLevel string) {
	globalManager.fraudAlertsRaised.WithLabelValues(pattern, riskLevel).Inc()
}

// RecordFraudAlertSuppressed counts findings dropped as duplicates.
func RecordFraudAlertSuppressed(pattern string, n int) {
	if n > 0 {
		globalManager.fraudAlertsSuppressed.WithLabelValues(pattern).Add(float64(n))
	}
}

// RecordAlertTransition counts an administrative status change.
func RecordAlertTransition(from, to string) {
	globalManager.alertTransitions.WithLabelValues(from, to).Inc()
}

// UpdateActiveAlerts sets the number of open or investigating alerts.
func UpdateActiveAlerts(count int) {
	globalManager.activeAlerts.Set(float64(count))
}

// Matching Metrics Functions.

// RecordMatchScore observes one match score.
func RecordMatchScore(score float64) {
	globalManager.matchScore.Observe(score)
}

// RecordRecommendation observes one ranking call.
func RecordRecommendation(kind string, poolSize int, latencyMs float64) {
	globalManager.recommendationLatency.WithLabelValues(kind).Observe(latencyMs)
	globalManager.recommendationPoolSize.WithLabelValues(kind).Observe(float64(poolSize))
}

// Activity Metrics Functions.

// RecordActivityEvent counts a processed activity event.
func RecordActivityEvent(kind string) {
	globalManager.activityEvents.WithLabelValues(kind).Inc()
}

// RecordActivityDuplicate counts an event rejected by the deduper.
func RecordActivityDuplicate() {
	globalManager.activityDuplicates.Inc()
}

// RecordNotification counts a publish attempt. result is "ok" or "error".
func RecordNotification(kind, result string) {
	globalManager.notifications.WithLabelValues(kind, result).Inc()
}

// Repository Metrics Functions.

// RecordRepositoryLatency observes one storage operation.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// UpdateRepositoryRecords sets the stored record count for kind.
func UpdateRepositoryRecords(kind string, count int) {
	globalManager.repositoryRecords.WithLabelValues(kind).Set(float64(count))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue wait time in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records error latency.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry for serving metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
