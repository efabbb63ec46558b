// Package metrics exposes Prometheus instrumentation for the survey
// service, its HTTP surface and the export worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "survey"

var (
	// SubmissionsTotal counts submission attempts.
	// Labels: result (stored, invalid, error)
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of survey submissions by result",
		},
		[]string{"result"},
	)

	// RecordsSkipped counts stored documents rejected while loading.
	RecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Stored documents skipped because they failed validation",
		},
	)

	// Participants is the record count seen by the last load.
	Participants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Number of valid survey responses at the last load",
		},
	)

	// ExportsTotal counts export runs.
	// Labels: target (csv, sheets), result (success, error)
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Total number of export runs by target and result",
		},
		[]string{"target", "result"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Duration of export runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Response events published to the broker by result",
		},
		[]string{"result"},
	)

	// HTTPRequests counts requests by route pattern and status class.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	// InvalidClientAddrs counts requests whose peer address did not parse.
	InvalidClientAddrs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "invalid_client_addrs_total",
			Help:      "Requests whose remote address could not be parsed",
		},
	)
)

// Result labels.
const (
	ResultStored  = "stored"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultSuccess = "success"
)

// Export targets.
const (
	TargetCSV    = "csv"
	TargetSheets = "sheets"
)

// Outcome maps an error to ResultSuccess or ResultError.
func Outcome(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
