package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the live scheduler.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	fetchesTotal          prometheus.Counter
	fetchFailuresTotal    prometheus.Counter
	staleFetchesTotal     prometheus.Counter
	transitionsTotal      prometheus.Counter
	selectionChangesTotal prometheus.Counter
	channels              prometheus.Gauge
}

// New creates and registers Prometheus metrics for the scheduler.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	fetchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_fetches_total",
		Help: "Total number of schedule fetches issued",
	})
	fetchFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_fetch_failures_total",
		Help: "Total number of schedule fetches that failed",
	})
	staleFetchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_stale_fetches_total",
		Help: "Total number of fetch responses discarded because newer data was already applied",
	})
	transitionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_transitions_total",
		Help: "Total number of program transition timer firings",
	})
	selectionChangesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_scheduler_selection_changes_total",
		Help: "Total number of changes to the active channel or program",
	})
	channels := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_scheduler_channels",
		Help: "Number of channels in the current schedule snapshot",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		fetchesTotal,
		fetchFailuresTotal,
		staleFetchesTotal,
		transitionsTotal,
		selectionChangesTotal,
		channels,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		fetchesTotal:          fetchesTotal,
		fetchFailuresTotal:    fetchFailuresTotal,
		staleFetchesTotal:     staleFetchesTotal,
		transitionsTotal:      transitionsTotal,
		selectionChangesTotal: selectionChangesTotal,
		channels:              channels,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

func (m *Metrics) IncFetches()          { m.fetchesTotal.Inc() }
func (m *Metrics) IncFetchFailures()    { m.fetchFailuresTotal.Inc() }
func (m *Metrics) IncStaleFetches()     { m.staleFetchesTotal.Inc() }
func (m *Metrics) IncTransitions()      { m.transitionsTotal.Inc() }
func (m *Metrics) IncSelectionChanges() { m.selectionChangesTotal.Inc() }

// SetChannels sets the channels gauge.
func (m *Metrics) SetChannels(n int) {
	m.channels.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
