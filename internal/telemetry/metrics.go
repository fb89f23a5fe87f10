package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the retrieval and evaluation paths.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	retrievalLatency prometheus.Histogram
	retrievalScore   prometheus.Histogram
	embeddingTokens  prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	evalQueries      *prometheus.CounterVec
	evalScore        *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		retrievalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "genai",
			Subsystem: "rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Vector search latency including query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "genai",
			Subsystem: "rag",
			Name:      "retrieval_score",
			Help:      "Cosine similarity of returned search results.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		embeddingTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genai",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens reported by the embedding provider.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genai",
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		evalQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genai",
			Subsystem: "evaluation",
			Name:      "queries_total",
			Help:      "Evaluated test cases by status.",
		}, []string{"status"}),
		evalScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "genai",
			Subsystem: "evaluation",
			Name:      "overall_score",
			Help:      "Mean overall score of the last run per category.",
		}, []string{"category"}),
	}
	m.registry.MustRegister(
		m.retrievalLatency,
		m.retrievalScore,
		m.embeddingTokens,
		m.cacheLookups,
		m.evalQueries,
		m.evalScore,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRetrieval(d time.Duration, scores []float64) {
	if m == nil {
		return
	}
	m.retrievalLatency.Observe(d.Seconds())
	for _, s := range scores {
		m.retrievalScore.Observe(s)
	}
}

func (m *Metrics) AddEmbeddingTokens(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.embeddingTokens.Add(float64(n))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) CacheError() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("error").Inc()
}

// EvaluationDone counts one finished test case, status is "success" or "failed".
func (m *Metrics) EvaluationDone(status string) {
	if m == nil {
		return
	}
	m.evalQueries.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCategoryScore(category string, score float64) {
	if m == nil {
		return
	}
	m.evalScore.WithLabelValues(category).Set(score)
}

// WriteToTextfile dumps the registry in the node exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
