// Package metrics exposes Prometheus collectors for invocations, discovery
// and orchestration cycles.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/tool"
)

const namespace = "toolwire"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Invocations        *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	DiscoveryRequests  *prometheus.CounterVec
	Cycles             *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	PromptTokens       prometheus.Histogram
}

// New registers all collectors. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of tool invocations",
			},
			[]string{"tool", "status"}, // status: HTTP status code
		),
		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Tool invocation duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool"},
		),
		DiscoveryRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_requests_total",
				Help:      "Total number of catalog discovery requests",
			},
			[]string{"status"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Orchestration cycles by outcome",
			},
			[]string{"outcome"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_step_duration_seconds",
				Help:      "Orchestration step duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"step"}, // step: discover|decide|invoke
		),
		PromptTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prompt_tokens",
				Help:      "Estimated tokens per decision prompt",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
			},
		),
	}
	m.reg.MustRegister(m.Invocations, m.InvocationDuration, m.DiscoveryRequests, m.Cycles, m.StepDuration, m.PromptTokens)
	if withRuntime {
		m.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveInvocation implements tool.Observer.
func (m *Metrics) ObserveInvocation(_ context.Context, inv tool.Invocation) {
	status := http.StatusOK
	if inv.Err != nil {
		status = errmodel.HTTPStatus(inv.Err)
	}
	m.Invocations.WithLabelValues(inv.Tool, strconv.Itoa(status)).Inc()
	m.InvocationDuration.WithLabelValues(inv.Tool).Observe(inv.Duration.Seconds())
}

// ObserveDiscovery counts one discovery request by HTTP status.
func (m *Metrics) ObserveDiscovery(status int) {
	m.DiscoveryRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveCycle counts one orchestration cycle by outcome.
func (m *Metrics) ObserveCycle(outcome string) {
	m.Cycles.WithLabelValues(outcome).Inc()
}

// ObserveStep records how long one orchestration step took.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// ObservePromptTokens records the estimated size of a decision prompt.
func (m *Metrics) ObservePromptTokens(n int) {
	m.PromptTokens.Observe(float64(n))
}
