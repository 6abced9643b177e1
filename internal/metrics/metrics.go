package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crosslink"

// Outcome labels shared by the counters.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeMiss     = "miss"
	OutcomeRejected = "rejected"
)

// Metrics bundles the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	resolutions      *prometheus.CounterVec
	batchItems       *prometheus.CounterVec
	syncTasks        *prometheus.CounterVec
	syncDuration     *prometheus.HistogramVec
	lookups          *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

// New builds a Metrics instance with a private registry. Go runtime and
// process collectors are included when withRuntime is true.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Catalog requests by catalog, operation, and outcome.",
		}, []string{"catalog", "operation", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolver outcomes.",
		}, []string{"outcome"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch scheduler items by phase and outcome.",
		}, []string{"phase", "outcome"}),
		syncTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Scheduled sync sub-tasks by outcome.",
		}, []string{"task", "outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_task_duration_seconds",
			Help:      "Scheduled sync sub-task duration.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"task"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Read-path lookups by result (hit, backfill, resolved, miss).",
		}, []string{"result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
	}
	reg.MustRegister(
		m.upstreamRequests,
		m.resolutions,
		m.batchItems,
		m.syncTasks,
		m.syncDuration,
		m.lookups,
		m.breakerState,
	)
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// UpstreamRequest counts one catalog call.
func (m *Metrics) UpstreamRequest(catalog, operation, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(catalog, operation, outcome).Inc()
}

// Resolution counts one resolver outcome.
func (m *Metrics) Resolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

// BatchItem counts one batch item.
func (m *Metrics) BatchItem(phase string, ok bool) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(phase, outcomeLabel(ok)).Inc()
}

// SyncTask records one scheduled sync sub-task.
func (m *Metrics) SyncTask(task string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncTasks.WithLabelValues(task, outcomeLabel(ok)).Inc()
	m.syncDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// Lookup counts one read-path result.
func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

// BreakerState sets the gauge for a named breaker.
func (m *Metrics) BreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

func outcomeLabel(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
