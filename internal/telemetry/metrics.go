package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for queries and ingestion on a
// private registry.
type Metrics struct {
	registry  *prometheus.Registry
	queries   *prometheus.CounterVec
	latency   prometheus.Histogram
	tokens    prometheus.Counter
	documents prometheus.Counter
	chunks    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_queries_total",
			Help: "Answered queries by outcome.",
		}, []string{"status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_query_latency_seconds",
			Help:    "End-to-end query latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_tokens_total",
			Help: "Tokens consumed by successful queries.",
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_documents_ingested_total",
			Help: "Documents stored by the upload pipeline.",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_ingested_total",
			Help: "Chunks stored by the upload pipeline.",
		}),
	}
	m.registry.MustRegister(
		m.queries, m.latency, m.tokens, m.documents, m.chunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeQuery(success bool, latencySeconds float64, tokens int) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.queries.WithLabelValues(status).Inc()
	m.latency.Observe(latencySeconds)
	if success && tokens > 0 {
		m.tokens.Add(float64(tokens))
	}
}

// ObserveIngest counts one stored document and its chunks.
func (m *Metrics) ObserveIngest(chunks int) {
	if m == nil {
		return
	}
	m.documents.Inc()
	m.chunks.Add(float64(chunks))
}

// Registry exposes the registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
