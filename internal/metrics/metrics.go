// Package metrics collects and exposes Prometheus metrics for the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the relay's metric set on a private registry so tests can
// construct collectors independently.
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	jobsAcquired  prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsEvicted   prometheus.Counter
}

// New creates a collector. queued and inFlight are sampled on scrape.
func New(queued, inFlight func() int) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_jobs_submitted_total",
			Help: "Total number of jobs deposited into the broker",
		}),
		jobsAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_jobs_acquired_total",
			Help: "Total number of jobs handed to providers",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_jobs_completed_total",
			Help: "Total number of jobs with a submitted result",
		}),
		jobsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_jobs_evicted_total",
			Help: "Total number of jobs reclaimed by sweeps",
		}),
	}

	c.registry.MustRegister(c.jobsSubmitted, c.jobsAcquired, c.jobsCompleted, c.jobsEvicted)
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_jobs_queued",
		Help: "Jobs deposited but not yet acquired",
	}, func() float64 { return float64(queued()) }))
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_jobs_in_flight",
		Help: "Jobs acquired and awaiting a result",
	}, func() float64 { return float64(inFlight()) }))

	return c
}

// Handler serves the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSubmitted counts a job deposited into the broker.
func (c *Collector) RecordSubmitted() { c.jobsSubmitted.Inc() }

// RecordAcquired counts a job handed to a provider.
func (c *Collector) RecordAcquired() { c.jobsAcquired.Inc() }

// RecordCompleted counts a job whose result was submitted.
func (c *Collector) RecordCompleted() { c.jobsCompleted.Inc() }

// RecordEvicted counts jobs reclaimed by a sweep pass.
func (c *Collector) RecordEvicted(n int) { c.jobsEvicted.Add(float64(n)) }
