package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store and HTTP metric vectors. Lazily initialized on first record so that
// importing this package has no side effects.
var (
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreRetriesTotal      *prometheus.CounterVec
	BucketPoolSize         prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

// initializeMetrics initializes the metric vectors if they haven't been
// initialized yet.
func initializeMetrics() {
	if StoreOperationsTotal != nil {
		return // Already initialized
	}

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "bucket", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "bucket", "status"},
	)

	StoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_retries_total",
			Help: "Total number of retried store operation attempts",
		},
		[]string{"operation", "bucket"},
	)

	BucketPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bucket_pool_size",
			Help: "Number of cached bucket handles",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	mm := GetInstance()
	mm.registry.MustRegister(
		StoreOperationsTotal,
		StoreOperationDuration,
		StoreRetriesTotal,
		BucketPoolSize,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// RecordStoreOperation records one completed store operation.
func RecordStoreOperation(operation, bucket string, err error, duration time.Duration) {
	mm := GetInstance()
	mm.mu.Lock()
	initializeMetrics()
	mm.mu.Unlock()

	status := "success"
	if err != nil {
		status = "error"
	}

	StoreOperationsTotal.WithLabelValues(operation, bucket, status).Inc()
	StoreOperationDuration.WithLabelValues(operation, bucket, status).Observe(duration.Seconds())
}

// RecordStoreRetry records one retried attempt of a store operation.
func RecordStoreRetry(operation, bucket string) {
	mm := GetInstance()
	mm.mu.Lock()
	initializeMetrics()
	mm.mu.Unlock()

	StoreRetriesTotal.WithLabelValues(operation, bucket).Inc()
}

// SetBucketPoolSize publishes the current number of cached bucket handles.
func SetBucketPoolSize(n int) {
	mm := GetInstance()
	mm.mu.Lock()
	initializeMetrics()
	mm.mu.Unlock()

	BucketPoolSize.Set(float64(n))
}

// RecordHTTPRequest records metrics for one HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	mm := GetInstance()
	mm.mu.Lock()
	initializeMetrics()
	mm.mu.Unlock()

	status := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}
