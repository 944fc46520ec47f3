package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the kernel. Methods are safe
// to call on a nil *Collector, which records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Orchestration metrics
	TaskRequests     *prometheus.CounterVec
	PatchCommits     prometheus.Counter
	CASConflicts     prometheus.Counter
	PatchRejections  *prometheus.CounterVec
	BudgetDecisions  *prometheus.CounterVec
	StoreDuration    *prometheus.HistogramVec
	EventPublishErrs prometheus.Counter

	// Command and query dispatch
	Dispatches *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TaskRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_requests_total",
				Help:      "Task requests by terminal status",
			},
			[]string{"task", "status"},
		),
		PatchCommits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patch_commits_total",
				Help:      "Patches committed through compare-and-swap",
			},
		),
		CASConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cas_conflicts_total",
				Help:      "Commits rejected for a stale version",
			},
		),
		PatchRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patch_rejections_total",
				Help:      "Patches rejected by the patch engine",
			},
			[]string{"code"},
		),
		BudgetDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_decisions_total",
				Help:      "Budget guard outcomes",
			},
			[]string{"decision"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Graph store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		EventPublishErrs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_publish_errors_total",
				Help:      "Domain events that failed to publish",
			},
		),
		Dispatches: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Command and query handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "name", "outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.TaskRequests,
		c.PatchCommits,
		c.CASConflicts,
		c.PatchRejections,
		c.BudgetDecisions,
		c.StoreDuration,
		c.EventPublishErrs,
		c.Dispatches,
	)
	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordTask counts a task request by its terminal status
func (c *Collector) RecordTask(task, status string) {
	if c == nil {
		return
	}
	c.TaskRequests.WithLabelValues(task, status).Inc()
}

// RecordCommit counts a committed patch
func (c *Collector) RecordCommit() {
	if c == nil {
		return
	}
	c.PatchCommits.Inc()
}

// RecordConflict counts a compare-and-swap failure
func (c *Collector) RecordConflict() {
	if c == nil {
		return
	}
	c.CASConflicts.Inc()
}

// RecordRejection counts an engine rejection by error code
func (c *Collector) RecordRejection(code string) {
	if c == nil {
		return
	}
	c.PatchRejections.WithLabelValues(code).Inc()
}

// RecordBudget counts a budget decision
func (c *Collector) RecordBudget(decision string) {
	if c == nil {
		return
	}
	c.BudgetDecisions.WithLabelValues(decision).Inc()
}

// ObserveStore records how long a store operation took
func (c *Collector) ObserveStore(op string, started time.Time) {
	if c == nil {
		return
	}
	c.StoreDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// RecordPublishError counts an event that could not be published
func (c *Collector) RecordPublishError() {
	if c == nil {
		return
	}
	c.EventPublishErrs.Inc()
}

// RecordHTTP records one served request
func (c *Collector) RecordHTTP(method, route, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordDispatch records one handled command or query
func (c *Collector) RecordDispatch(kind, name, outcome string, started time.Time) {
	if c == nil {
		return
	}
	c.Dispatches.WithLabelValues(kind, name, outcome).Observe(time.Since(started).Seconds())
}
