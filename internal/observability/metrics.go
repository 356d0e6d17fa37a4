package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	apiRequestsTotal        *prometheus.CounterVec
	apiLatencySeconds       *prometheus.HistogramVec
	gradingEventsTotal      *prometheus.CounterVec
	pageCacheEventsTotal    *prometheus.CounterVec
	remoteFetchFailureTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astra_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "astra_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		gradingEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astra_grading_events_total",
			Help: "Submission status transitions, labelled by resulting status.",
		}, []string{"status"})

		pageCacheEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astra_page_cache_events_total",
			Help: "Exercise page cache outcomes: hit, miss or revalidated.",
		}, []string{"result"})

		remoteFetchFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "astra_remote_fetch_failures_total",
			Help: "Failed requests to the exercise service, labelled by kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			gradingEventsTotal,
			pageCacheEventsTotal,
			remoteFetchFailureTotal,
		)
	})
}

// APIRequests exposes the counter for served requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for served requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// GradingEvents exposes the counter for submission status transitions.
func GradingEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingEventsTotal
}

// PageCacheEvents exposes the counter for page cache outcomes.
func PageCacheEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return pageCacheEventsTotal
}

// RemoteFetchFailures exposes the counter for failed exercise service calls.
func RemoteFetchFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return remoteFetchFailureTotal
}
