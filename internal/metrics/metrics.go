// Package metrics exposes Prometheus collectors for the ingestion service.
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
	ingestItemsTotal              *prometheus.CounterVec
	ingestBytesTotal              *prometheus.CounterVec
	ingestDuplicatesTotal         *prometheus.CounterVec
	ingestValidationFailuresTotal *prometheus.CounterVec
	ingestStageErrorsTotal        *prometheus.CounterVec
	ingestJobsTotal               *prometheus.CounterVec
	ingestActiveWorkers           prometheus.Gauge
	breakerState                  *prometheus.GaugeVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_total",
				Help: "Total content items ingested, labeled by source type.",
			},
			[]string{"source_type"},
		)

		ingestBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_bytes_total",
				Help: "Total normalized bytes ingested, labeled by source type.",
			},
			[]string{"source_type"},
		)

		ingestDuplicatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_duplicates_total",
				Help: "Total duplicate items detected, labeled by source type.",
			},
			[]string{"source_type"},
		)

		ingestValidationFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_validation_failures_total",
				Help: "Total items rejected by the quality gate, labeled by source type.",
			},
			[]string{"source_type"},
		)

		ingestStageErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_stage_errors_total",
				Help: "Total pipeline stage errors, labeled by stage.",
			},
			[]string{"stage"},
		)

		ingestJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_jobs_total",
				Help: "Total ingestion jobs finished, labeled by final status.",
			},
			[]string{"status"},
		)

		ingestActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_active_workers",
				Help: "Number of workers currently processing an item.",
			},
		)

		breakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ingest_breaker_state",
				Help: "Circuit breaker state per dependency: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"dependency"},
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

// ObserveIngested counts one persisted item and its normalized size.
func ObserveIngested(sourceType string, bytes int) {
	ingestItemsTotal.WithLabelValues(sourceType).Inc()
	if bytes > 0 {
		ingestBytesTotal.WithLabelValues(sourceType).Add(float64(bytes))
	}
}

// ObserveDuplicate counts one duplicate detection.
func ObserveDuplicate(sourceType string) {
	ingestDuplicatesTotal.WithLabelValues(sourceType).Inc()
}

// ObserveValidationFailure counts one quality-gate rejection.
func ObserveValidationFailure(sourceType string) {
	ingestValidationFailuresTotal.WithLabelValues(sourceType).Inc()
}

// ObserveStageError counts one isolated pipeline stage error.
func ObserveStageError(stage string) {
	ingestStageErrorsTotal.WithLabelValues(stage).Inc()
}

// ObserveJob counts a finished job by its final status.
func ObserveJob(status string) {
	ingestJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	ingestActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	ingestActiveWorkers.Dec()
}

// SetBreakerState records a breaker's state for a dependency.
func SetBreakerState(dependency string, state int) {
	breakerState.WithLabelValues(dependency).Set(float64(state))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
