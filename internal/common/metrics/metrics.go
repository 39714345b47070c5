// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_requests_total",
			Help: "Total number of gateway requests by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadgate_request_duration_seconds",
			Help:    "Duration of gateway request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadgate_requests_in_flight",
			Help: "Number of requests currently being handled per endpoint",
		},
		[]string{"endpoint"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_collaborator_failures_total",
			Help: "Total number of failed calls to CRM, email and verification services",
		},
		[]string{"collaborator", "operation"},
	)

	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_leads_total",
			Help: "Total number of captured leads by status",
		},
		[]string{"status"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_errors_total",
			Help: "Total number of error responses by endpoint and category",
		},
		[]string{"endpoint", "category"},
	)
)

// Recorder adapts the collectors to the error handler.
type Recorder struct{}

func (Recorder) RecordError(endpoint, category string) {
	ErrorsTotal.WithLabelValues(endpoint, category).Inc()
}
