package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes recorded by the transport adapters.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
	OutcomePublished = "published"
)

// Metrics holds the Prometheus registry and the pct meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	MessagesTotal     *prometheus.CounterVec
	PluginProbes      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates a private registry with the standard pct metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pct_operation_duration_seconds",
		Help:    "Duration of operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pct_operation_total",
		Help: "Total number of operations.",
	}, []string{"operation", "status"})

	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pct_messages_total",
		Help: "Point cloud messages handled by transport adapters.",
	}, []string{"transport", "outcome"})

	probes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pct_plugin_probes_total",
		Help: "Transport plugin instantiation probes by role and resulting status.",
	}, []string{"role", "status"})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pct_errors_total",
		Help: "Total number of errors.",
	}, []string{"operation", "type"})

	reg.MustRegister(opDuration, opTotal, messages, probes, errorsTotal)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		MessagesTotal:     messages,
		PluginProbes:      probes,
		ErrorsTotal:       errorsTotal,
	}
}

// CountMessage increments pct_messages_total. Safe on a nil receiver.
func (m *Metrics) CountMessage(transport, outcome string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(transport, outcome).Inc()
}

// CountProbe increments pct_plugin_probes_total. Safe on a nil receiver.
func (m *Metrics) CountProbe(role, status string) {
	if m == nil {
		return
	}
	m.PluginProbes.WithLabelValues(role, status).Inc()
}

// CountError increments pct_errors_total. Safe on a nil receiver.
func (m *Metrics) CountError(operation, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation, kind).Inc()
}
