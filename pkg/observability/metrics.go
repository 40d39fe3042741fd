// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring tokengate.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthBuckets defines histogram buckets suited for token validation,
// ranging from 0.5ms (in-memory lookup) to 5s (remote JWKS fetch).
var AuthBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokengate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks the number of requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokengate_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthDecisionsTotal counts authentication decisions by outcome
	// (allowed/rejected), reason, and the request location of the token.
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_auth_decisions_total",
			Help: "Authentication decisions",
		},
		[]string{"outcome", "reason", "source"},
	)

	// ValidationDuration records token validation latency per validator.
	ValidationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokengate_validation_duration_seconds",
			Help:    "Token validation latency",
			Buckets: AuthBuckets,
		},
		[]string{"validator"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)

	// PolicyReloadsTotal counts configuration reloads of the path policy.
	PolicyReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_policy_reloads_total",
			Help: "Policy reloads",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		AuthDecisionsTotal,
		ValidationDuration,
		RateLimitRejectedTotal,
		PolicyReloadsTotal,
	)
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
