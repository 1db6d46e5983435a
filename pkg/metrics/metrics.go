// Package metrics exposes Prometheus instrumentation for transitions, definition saves and
// the definition cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the collectors of one registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitionsTotal   *prometheus.CounterVec
	transitionDuration prometheus.Histogram
	transitionRetries  prometheus.Counter
	workflowSavesTotal *prometheus.CounterVec
	cacheLookupsTotal  *prometheus.CounterVec
	eventsConsumed     *prometheus.CounterVec
}

// New registers the ticketflow collectors, plus the Go and process collectors, on a fresh
// registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_transitions_total",
				Help: "Total number of transition requests by outcome and matching rule",
			},
			[]string{"outcome", "rule"},
		),

		transitionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ticketflow_transition_duration_seconds",
				Help:    "Transition request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		transitionRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketflow_transition_retries_total",
				Help: "Total number of transitions retried after a concurrent modification",
			},
		),

		workflowSavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_workflow_saves_total",
				Help: "Total number of workflow definition saves by outcome",
			},
			[]string{"outcome"},
		),

		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_workflow_cache_lookups_total",
				Help: "Total number of workflow cache lookups by result",
			},
			[]string{"result"},
		),

		eventsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_events_consumed_total",
				Help: "Total number of lifecycle events consumed from the event bus by type",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) RecordTransition(outcome, rule string, duration time.Duration) {
	if m == nil {
		return
	}

	m.transitionsTotal.WithLabelValues(outcome, rule).Inc()
	m.transitionDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}

	m.transitionRetries.Inc()
}

func (m *Metrics) RecordWorkflowSave(outcome string) {
	if m == nil {
		return
	}

	m.workflowSavesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordEventConsumed(eventType string) {
	if m == nil {
		return
	}

	m.eventsConsumed.WithLabelValues(eventType).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
