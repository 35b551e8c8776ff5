package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry holds every collector exposed on /api/metrics
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	// Buckets for page renders and upstream calls; upstream calls are bounded by the
	// HTTP client timeout so nothing above 34s is expected.
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34}

	// HTTP Metrics
	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Upstream (dealer service, car catalog, review endpoint) client metrics
	UpstreamRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_client_operation_duration_seconds",
			Help:    "Collaborator service call duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	UpstreamRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_client_operation_total",
			Help: "Total number of collaborator service calls",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// Cache Metrics
	CacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	CacheSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Number of entries in cache",
		},
		[]string{"cache_name"},
	)

	// Business Metrics
	ReviewFormLoads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealer_review_form_loads_total",
			Help: "Review form loads by loader and outcome",
		},
		[]string{"loader", "status"},
	)

	ReviewValidationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealer_review_validation_failures_total",
			Help: "Review submissions rejected by form validation",
		},
		[]string{"field"},
	)

	ReviewSubmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealer_review_submissions_total",
			Help: "Review submission attempts by outcome",
		},
		[]string{"status"},
	)

	ReviewSubmitDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dealer_review_submit_duration_seconds",
			Help:    "Time spent posting a review upstream",
			Buckets: CustomAPIBuckets,
		},
	)

	// Infrastructure Metrics
	GoRoutines = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

// Init registers the process collector labelled with the service name.
func Init(serviceName string) {
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "service_info",
		Help:        "Static service information",
		ConstLabels: prometheus.Labels{"service_name": serviceName},
	}, func() float64 { return 1 }))
}

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
