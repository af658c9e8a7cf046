// Package metrics backs the gateway's GET /metrics endpoint with a real
// prometheus.Registry rather than a hand-rolled counter format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles every metric the facade and core subsystems update.
type Collectors struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CircuitState    *prometheus.GaugeVec
	AuditQueueDepth prometheus.Gauge
	ComplianceViolations *prometheus.CounterVec
}

// New builds a fresh registry with every collector registered.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total HTTP requests handled by the gateway facade.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Per-service circuit breaker state: 0=CLOSED 1=HALF_OPEN 2=OPEN.",
		}, []string{"service"}),
		AuditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_audit_queue_depth",
			Help: "Number of audit entries buffered but not yet durably persisted.",
		}),
		ComplianceViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_compliance_violations_total",
			Help: "Compliance violations observed, by regulation.",
		}, []string{"regulation"}),
	}

	reg.MustRegister(c.RequestsTotal, c.RequestDuration, c.CircuitState, c.AuditQueueDepth, c.ComplianceViolations)
	return c
}

// Handler exposes the text-exposition endpoint for GET /metrics.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// BreakerStateValue maps a models.BreakerState string to the gauge encoding
// documented on CircuitState.
func BreakerStateValue(state string) float64 {
	switch state {
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	default:
		return 0
	}
}
