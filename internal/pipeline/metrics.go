package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds all Prometheus metrics owned by the pipeline.
// A single instance is created in New and stored on Pipeline so that tests
// can inject a fresh prometheus.Registry without polluting the default one.
type pipelineMetrics struct {
	// documentsTotal counts documents processed by ingestion, partitioned
	// by result: "indexed", "skipped", or "failed".
	documentsTotal *prometheus.CounterVec

	// chunksIndexedTotal counts chunks written to the vector index.
	chunksIndexedTotal prometheus.Counter

	// embeddingRetriesTotal counts transient embedding failures that were
	// retried.
	embeddingRetriesTotal prometheus.Counter

	// queriesTotal counts query flows, partitioned by outcome: "ok",
	// "retrieval_error", or "generation_error".
	queriesTotal *prometheus.CounterVec

	// retrievalResults records how many entries each retrieval returned
	// after filtering and collapsing.
	retrievalResults prometheus.Histogram
}

// newPipelineMetrics registers all pipeline metrics against reg. Uses
// promauto.With(reg) so each call registers into the provided registry
// rather than the global default.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		documentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents processed by ingestion, partitioned by result.",
		}, []string{"result"}),

		chunksIndexedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "ingest",
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the vector index.",
		}),

		embeddingRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "embed",
			Name:      "retries_total",
			Help:      "Transient embedding failures that were retried.",
		}),

		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "query",
			Name:      "total",
			Help:      "Query flows completed, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "query",
			Name:      "retrieval_results",
			Help:      "Entries returned per retrieval after filtering.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
	}
}
