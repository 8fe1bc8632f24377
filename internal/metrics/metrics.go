// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlSubmissionsTotal      *prometheus.CounterVec
	crawlJobsTotal             *prometheus.CounterVec
	crawlFetchDurationSeconds  prometheus.Histogram
	crawlFetchErrorsTotal      *prometheus.CounterVec
	crawlActiveWorkers         prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Submission results recorded by ObserveSubmission.
const (
	SubmissionCreated      = "created"
	SubmissionDeduplicated = "deduplicated"
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlSubmissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_submissions_total",
				Help: "Total number of submitted URLs, labeled by dedup result.",
			},
			[]string{"result"},
		)

		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_jobs_total",
				Help: "Total number of crawl jobs resolved, labeled by terminal status.",
			},
			[]string{"status"},
		)

		crawlFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawl_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		crawlFetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_fetch_errors_total",
				Help: "Total number of failed fetches, labeled by error kind.",
			},
			[]string{"kind"},
		)

		crawlActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSubmission counts one submitted URL by dedup result.
func ObserveSubmission(result string) {
	crawlSubmissionsTotal.WithLabelValues(result).Inc()
}

// ObserveJob counts one job reaching the given terminal status.
func ObserveJob(status string) {
	crawlJobsTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records fetch latency, and the error kind when non-empty.
func ObserveFetch(duration time.Duration, errKind string) {
	crawlFetchDurationSeconds.Observe(duration.Seconds())
	if errKind != "" {
		crawlFetchErrorsTotal.WithLabelValues(errKind).Inc()
	}
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	crawlActiveWorkers.Inc()
}

// WorkerFinished decrements the active worker gauge.
func WorkerFinished() {
	crawlActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
