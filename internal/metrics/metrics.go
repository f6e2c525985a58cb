package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "substills_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Capture Metrics
	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_captures_total",
			Help: "Total number of completed captures",
		},
		[]string{"source", "format"},
	)

	CaptureFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_capture_failures_total",
			Help: "Total number of failed captures by error code",
		},
		[]string{"code"},
	)

	CaptureDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "substills_capture_duration_seconds",
			Help:    "End-to-end capture latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"source"},
	)

	CaptureSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "substills_capture_size_bytes",
			Help:    "Encoded capture size in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 12), // 16KB to 32MB
		},
		[]string{"format"},
	)

	BlackFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "substills_black_frames_total",
			Help: "Total number of direct captures classified as black",
		},
	)

	SubtitleCuesDrawn = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_subtitle_cues_drawn_total",
			Help: "Total number of subtitle cues burned into captures",
		},
		[]string{"source"},
	)

	// Bridge Metrics
	BridgeMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_bridge_messages_total",
			Help: "Total number of page/background messages",
		},
		[]string{"action", "status"},
	)

	BridgeMessageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "substills_bridge_message_duration_seconds",
			Help:    "Page/background round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Command Metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_commands_total",
			Help: "Total number of keyboard commands handled",
		},
		[]string{"command", "status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "substills_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "substills_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Monitor gauges
	CommandQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "substills_command_queue_depth",
			Help: "Messages waiting in the command queues",
		},
		[]string{"queue"},
	)

	OpenTabs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "substills_open_tabs",
			Help: "Tabs with a loaded page snapshot",
		},
	)

	StoredCaptures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "substills_stored_captures",
			Help: "Captures recorded in history",
		},
		[]string{"source"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substills_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordCapture records a completed capture
func RecordCapture(source, format string, sizeBytes int, duration float64) {
	CapturesTotal.WithLabelValues(source, format).Inc()
	CaptureDuration.WithLabelValues(source).Observe(duration)
	CaptureSizeBytes.WithLabelValues(format).Observe(float64(sizeBytes))
}

// RecordCaptureFailure records a failed capture by error code
func RecordCaptureFailure(code string) {
	CaptureFailuresTotal.WithLabelValues(code).Inc()
}

// RecordBlackFrame records a black direct capture
func RecordBlackFrame() {
	BlackFramesTotal.Inc()
}

// RecordSubtitleCues records cues burned into a capture
func RecordSubtitleCues(source string, count int) {
	if count <= 0 {
		return
	}
	SubtitleCuesDrawn.WithLabelValues(source).Add(float64(count))
}

// RecordBridgeMessage records a page/background round trip
func RecordBridgeMessage(action, status string, duration float64) {
	BridgeMessagesTotal.WithLabelValues(action, status).Inc()
	BridgeMessageDuration.WithLabelValues(action).Observe(duration)
}

// RecordCommand records a handled keyboard command
func RecordCommand(command, status string) {
	CommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// SetQueueDepth records the depth of the command queue and its dead-letter queue
func SetQueueDepth(pending, dead int) {
	CommandQueueDepth.WithLabelValues("commands").Set(float64(pending))
	CommandQueueDepth.WithLabelValues("dead_letter").Set(float64(dead))
}

// SetOpenTabs records the number of loaded tabs
func SetOpenTabs(n int) {
	OpenTabs.Set(float64(n))
}

// SetStoredCaptures records history counts per capture source
func SetStoredCaptures(bySource map[string]int64) {
	for source, n := range bySource {
		StoredCaptures.WithLabelValues(source).Set(float64(n))
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
