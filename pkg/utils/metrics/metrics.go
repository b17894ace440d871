package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mnemosyne"

// Registry holds every collector the service exposes. The zero value is not
// usable; create one with New.
type Registry struct {
	reg *prometheus.Registry

	SearchTotal        *prometheus.CounterVec
	SearchDuration     *prometheus.HistogramVec
	EmbeddingRetries   prometheus.Counter
	EmbeddingCacheHits *prometheus.CounterVec
	ChunksWritten      prometheus.Counter
	ChunksTruncated    prometheus.Counter
	GenerationLoads    *prometheus.CounterVec
	GenerationTotal    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
}

// New creates a Registry with all collectors registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		SearchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Number of retrieval calls by intent and outcome.",
		}, []string{"intent", "outcome"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of retrieval calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		EmbeddingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_retries_total",
			Help:      "Embedding calls retried after a transient failure.",
		}),
		EmbeddingCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		ChunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_written_total",
			Help:      "Chunks written during ingestion.",
		}),
		ChunksTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_truncated_total",
			Help:      "Chunks dropped because a record exceeded the chunk ceiling.",
		}),
		GenerationLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_loads_total",
			Help:      "Generative model load attempts by outcome.",
		}, []string{"outcome"}),
		GenerationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_total",
			Help:      "Answer generation calls by query type and outcome.",
		}, []string{"query_type", "outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of answer generation.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}

	r.reg.MustRegister(
		r.SearchTotal,
		r.SearchDuration,
		r.EmbeddingRetries,
		r.EmbeddingCacheHits,
		r.ChunksWritten,
		r.ChunksTruncated,
		r.GenerationLoads,
		r.GenerationTotal,
		r.GenerationDuration,
	)

	return r
}

// Handler returns the HTTP handler serving this registry
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// The helpers below are nil-safe so components can run without metrics.

func (r *Registry) ObserveSearch(intent, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.SearchTotal.WithLabelValues(intent, outcome).Inc()
	r.SearchDuration.WithLabelValues(intent).Observe(seconds)
}

func (r *Registry) IncEmbeddingRetry() {
	if r == nil {
		return
	}
	r.EmbeddingRetries.Inc()
}

func (r *Registry) ObserveEmbeddingCache(layer string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.EmbeddingCacheHits.WithLabelValues(layer, result).Inc()
}

func (r *Registry) AddChunksWritten(n int) {
	if r == nil {
		return
	}
	r.ChunksWritten.Add(float64(n))
}

func (r *Registry) AddChunksTruncated(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ChunksTruncated.Add(float64(n))
}

func (r *Registry) IncGenerationLoad(outcome string) {
	if r == nil {
		return
	}
	r.GenerationLoads.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveGeneration(queryType, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.GenerationTotal.WithLabelValues(queryType, outcome).Inc()
	r.GenerationDuration.Observe(seconds)
}
