// Package metrics provides Prometheus instrumentation for the council
// service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns the service's Prometheus metrics. A nil *Collector is
// valid and records nothing, so instrumentation points never need guards.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	councilRunsTotal     *prometheus.CounterVec
	councilRunDuration   prometheus.Histogram
	councilStageDuration *prometheus.HistogramVec

	modelQueriesTotal  *prometheus.CounterVec
	modelQueryDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry; expose it via
// Registry on the metrics endpoint.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		councilRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "council_runs_total",
			Help:      "Total number of council consultations by outcome",
		}, []string{"outcome"}),
		councilRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "council_run_duration_seconds",
			Help:      "Duration of a full council consultation in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		councilStageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "council_stage_duration_seconds",
			Help:      "Duration of each council stage in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage"}),
		modelQueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_queries_total",
			Help:      "Total number of upstream model queries by outcome",
		}, []string{"model", "outcome"}),
		modelQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_query_duration_seconds",
			Help:      "Upstream model query duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}, []string{"model"}),
	}
}

// Registry returns the collector's registry for the scrape endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCouncilRun records one completed consultation.
func (c *Collector) RecordCouncilRun(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.councilRunsTotal.WithLabelValues(outcome).Inc()
	c.councilRunDuration.Observe(duration.Seconds())
}

// RecordStage records one stage's duration.
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if c == nil {
		return
	}
	c.councilStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordModelQuery records one upstream model call.
func (c *Collector) RecordModelQuery(model, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.modelQueriesTotal.WithLabelValues(model, outcome).Inc()
	c.modelQueryDuration.WithLabelValues(model).Observe(duration.Seconds())
}
