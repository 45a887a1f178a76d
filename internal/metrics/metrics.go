// Package metrics exposes prometheus collectors for the service on a
// dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	TasksSubmitted  prometheus.Counter
	TasksSucceeded  prometheus.Counter
	TasksFailed     *prometheus.CounterVec
	ChunksInserted  prometheus.Counter
	IngestDuration  prometheus.Histogram
	Queries         *prometheus.CounterVec
	QueryFallbacks  prometheus.Counter
	QueryDuration   prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_tasks_submitted_total",
			Help: "Ingestion tasks accepted for processing.",
		}),
		TasksSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_tasks_succeeded_total",
			Help: "Ingestion tasks that completed successfully.",
		}),
		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragserve_tasks_failed_total",
			Help: "Ingestion tasks that failed, by pipeline stage.",
		}, []string{"stage"}),
		ChunksInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_chunks_inserted_total",
			Help: "Chunks inserted into the engine.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragserve_ingest_duration_seconds",
			Help:    "End-to-end duration of ingestion tasks.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragserve_queries_total",
			Help: "Queries served, by mode and status.",
		}, []string{"mode", "status"}),
		QueryFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_query_fallbacks_total",
			Help: "Multimodal queries that fell back to text-only retrieval.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragserve_query_duration_seconds",
			Help:    "End-to-end duration of queries.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragserve_http_requests_total",
			Help: "HTTP requests served, by path and status code.",
		}, []string{"path", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragserve_http_request_duration_seconds",
			Help:    "HTTP request latency, by path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TasksSubmitted,
		m.TasksSucceeded,
		m.TasksFailed,
		m.ChunksInserted,
		m.IngestDuration,
		m.Queries,
		m.QueryFallbacks,
		m.QueryDuration,
		m.HTTPRequests,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
