// Package metrics provides Prometheus collectors for the action pipeline and
// the HTTP host in front of it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	invocations       *prometheus.CounterVec
	invocationLatency *prometheus.HistogramVec
	transitions       *prometheus.CounterVec
	selectionFailures *prometheus.CounterVec
	shortCircuits     *prometheus.CounterVec
	modelStateErrors  *prometheus.HistogramVec

	// HTTP metrics
	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a collector set registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mvc"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "invocations_total",
			Help:      "Total number of action invocations by outcome.",
		},
		[]string{"action", "outcome"},
	)

	m.invocationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "invocation_duration_seconds",
			Help:      "Duration of action invocations including result execution.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"action"},
	)

	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invoker",
			Name:      "state_transitions_total",
			Help:      "Invoker state transitions.",
		},
		[]string{"from", "to"},
	)

	m.selectionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selector",
			Name:      "failures_total",
			Help:      "Action selection failures by reason.",
		},
		[]string{"reason"},
	)

	m.shortCircuits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filters",
			Name:      "short_circuits_total",
			Help:      "Filter short-circuits by stage.",
		},
		[]string{"stage"},
	)

	m.modelStateErrors = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "binding",
			Name:      "model_state_errors",
			Help:      "Number of model state errors recorded per invocation.",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 200},
		},
		[]string{"action"},
	)

	m.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"service", "method", "path"},
	)

	m.registry.MustRegister(
		m.invocations,
		m.invocationLatency,
		m.transitions,
		m.selectionFailures,
		m.shortCircuits,
		m.modelStateErrors,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterRuntimeCollectors adds process and Go runtime collectors.
func (m *Metrics) RegisterRuntimeCollectors() {
	m.registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// =============================================================================
// Pipeline recording
// =============================================================================

// RecordInvocation records a finished invocation.
func (m *Metrics) RecordInvocation(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.invocations.WithLabelValues(action, outcome).Inc()
	m.invocationLatency.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordTransition records an invoker state transition.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordSelectionFailure records a not-found or ambiguous selection.
func (m *Metrics) RecordSelectionFailure(reason string) {
	if m == nil {
		return
	}
	m.selectionFailures.WithLabelValues(reason).Inc()
}

// RecordShortCircuit records a filter stage that produced a result itself.
func (m *Metrics) RecordShortCircuit(stage string) {
	if m == nil {
		return
	}
	m.shortCircuits.WithLabelValues(stage).Inc()
}

// RecordModelStateErrors records the model state error count of an invocation.
func (m *Metrics) RecordModelStateErrors(action string, count int) {
	if m == nil {
		return
	}
	m.modelStateErrors.WithLabelValues(action).Observe(float64(count))
}

// =============================================================================
// HTTP recording
// =============================================================================

// IncrementInFlight increments the in-flight request gauge.
func (m *Metrics) IncrementInFlight() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
}

// DecrementInFlight decrements the in-flight request gauge.
func (m *Metrics) DecrementInFlight() {
	if m == nil {
		return
	}
	m.httpInFlight.Dec()
}

// RecordHTTPRequest records a finished HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// Invocations exposes the invocation counter for tests and exporters.
func (m *Metrics) Invocations() *prometheus.CounterVec { return m.invocations }

// SelectionFailures exposes the selection failure counter.
func (m *Metrics) SelectionFailures() *prometheus.CounterVec { return m.selectionFailures }

// ShortCircuits exposes the short-circuit counter.
func (m *Metrics) ShortCircuits() *prometheus.CounterVec { return m.shortCircuits }

// Transitions exposes the state transition counter.
func (m *Metrics) Transitions() *prometheus.CounterVec { return m.transitions }
