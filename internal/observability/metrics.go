package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	codes           *prometheus.CounterVec
	codesSwept      prometheus.Counter
	decisions       *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		codes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_code_operations_total",
			Help: "Verification code operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		codesSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "verification_codes_swept_total",
			Help: "Expired verification codes removed by the sweeper.",
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Authorization decisions by scope and result.",
		}, []string{"scope", "result"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordCodeOperation counts issue/validate/redeem attempts.
func (m *Metrics) RecordCodeOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.codes.WithLabelValues(operation, outcome).Inc()
}

// RecordCodesSwept adds n to the swept counter.
func (m *Metrics) RecordCodesSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.codesSwept.Add(float64(n))
}

// RecordDecision counts allow/deny results.
func (m *Metrics) RecordDecision(objectScoped, allowed bool) {
	if m == nil {
		return
	}
	scope := "global"
	if objectScoped {
		scope = "object"
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.decisions.WithLabelValues(scope, result).Inc()
}
