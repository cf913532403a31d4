// Package metrics provides Prometheus metrics for the CareConnect dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultNamespace = "careconnect"
	subsystem        = "dashboard"
)

// Fetch latency buckets in milliseconds; the collaborator answers in tens
// of milliseconds when healthy and the request timeout defaults to 10s.
var defaultLatencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Manager owns the Prometheus collectors for the dashboard.
type Manager struct {
	namespace    string
	enabled      bool
	customLabels map[string]string
	registry     prometheus.Registerer

	// Report fetching
	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	fetchRows     *prometheus.GaugeVec

	// View model
	cyclesStarted       prometheus.Counter
	sliceState          *prometheus.GaugeVec
	deliveriesApplied   *prometheus.CounterVec
	deliveriesDiscarded *prometheus.CounterVec
	applyLatency        prometheus.Histogram

	// Delivery queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init rebuilds the global manager from opts on a fresh registry, which
// /healthz then serves. Call it at startup before anything records.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// NewManager creates a metrics manager. Collectors are registered on the
// configured registry (prometheus.DefaultRegisterer unless overridden).
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    defaultNamespace,
		enabled:      true,
		customLabels: make(map[string]string),
		registry:     prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.fetchRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "fetch_requests_total",
		Help:        "Report fetches by section and outcome (ok, network_error, decode_error, validation_error)",
		ConstLabels: constLabels,
	}, []string{"section", "outcome"})

	m.fetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "fetch_latency_milliseconds",
		Help:        "Report fetch latency in milliseconds",
		Buckets:     defaultLatencyBucketsMs,
		ConstLabels: constLabels,
	}, []string{"section"})

	m.fetchRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "fetch_rows",
		Help:        "Rows returned by the last successful fetch of each section",
		ConstLabels: constLabels,
	}, []string{"section"})

	m.cyclesStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "fetch_cycles_total",
		Help:        "Fetch cycles started (mounts and refreshes)",
		ConstLabels: constLabels,
	})

	m.sliceState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "slice_state",
		Help:        "Current slice state per section (0 pending, 1 loaded, 2 failed)",
		ConstLabels: constLabels,
	}, []string{"section"})

	m.deliveriesApplied = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "deliveries_applied_total",
		Help:        "Fetch results committed to view model state",
		ConstLabels: constLabels,
	}, []string{"section"})

	m.deliveriesDiscarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "deliveries_discarded_total",
		Help:        "Fetch results dropped because their cycle was torn down or superseded",
		ConstLabels: constLabels,
	}, []string{"section", "reason"})

	m.applyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "apply_latency_milliseconds",
		Help:        "Time spent committing a delivery to state",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "delivery_queue_size",
		Help:        "Deliveries waiting to be applied",
		ConstLabels: constLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "delivery_queue_capacity",
		Help:        "Capacity of the delivery queue",
		ConstLabels: constLabels,
	})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "delivery_enqueue_errors_total",
		Help:        "Deliveries that could not be enqueued",
		ConstLabels: constLabels,
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status code",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     defaultLatencyBucketsMs,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "http_errors_total",
		Help:        "HTTP error responses by endpoint, method and error type",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "errors_by_type_total",
		Help:        "Errors by type and severity",
		ConstLabels: constLabels,
	}, []string{"error_type", "severity"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_bytes",
		Help:        "Heap bytes allocated",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutines",
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})
}

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled }

// Report fetch metrics.

// RecordFetch records one finished fetch with its outcome label and latency.
func RecordFetch(section, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchRequests.WithLabelValues(section, outcome).Inc()
	globalManager.fetchLatency.WithLabelValues(section).Observe(latencyMs)
}

// UpdateFetchRows sets the row count of the last successful fetch.
func UpdateFetchRows(section string, rows int) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchRows.WithLabelValues(section).Set(float64(rows))
}

// View model metrics.

// RecordCycleStarted increments the fetch cycle counter.
func RecordCycleStarted() {
	if !globalManager.enabled {
		return
	}
	globalManager.cyclesStarted.Inc()
}

// UpdateSliceState sets the numeric state of a section's slice.
func UpdateSliceState(section string, state int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sliceState.WithLabelValues(section).Set(float64(state))
}

// RecordDeliveryApplied counts a committed delivery and its apply latency.
func RecordDeliveryApplied(section string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.deliveriesApplied.WithLabelValues(section).Inc()
	globalManager.applyLatency.Observe(latencyMs)
}

// RecordDeliveryDiscarded counts a dropped delivery.
func RecordDeliveryDiscarded(section, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.deliveriesDiscarded.WithLabelValues(section, reason).Inc()
}

// Delivery queue metrics.

// UpdateQueueSize sets the current delivery queue length.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the delivery queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
