package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded against authentication attempts. Rejections are
// expected traffic (bad credentials, duplicate emails); errors are not.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics contains the custom prometheus metrics. A nil *Metrics is valid and
// records nothing, so tests can pass nil.
type Metrics struct {
	registry     *prometheus.Registry
	authAttempts *prometheus.CounterVec
}

// NewMetrics creates a Metrics with its own registry, pre-registered with the
// standard Go and process collectors.
func NewMetrics() *Metrics {
	// A dedicated registry, to avoid polluting the global one.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meigen_auth_attempts_total",
			Help: "Total number of authentication attempts by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)
	registry.MustRegister(authAttempts)

	return &Metrics{
		registry:     registry,
		authAttempts: authAttempts,
	}
}

// RecordAuthAttempt increments the attempt counter for a flow ("register" or
// "signin") and outcome (see Outcome* constants).
func (m *Metrics) RecordAuthAttempt(flow, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(flow, outcome).Inc()
}

// Handler returns the HTTP handler exposing the registry in prometheus text
// format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
