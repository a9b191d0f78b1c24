package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline metrics.
var (
	FilesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "ingestion_files_total",
			Help:      "Files processed by the ingestion worker",
		},
		[]string{"status"}, // "ok" / "retry" / "dead_letter"
	)

	ChunksIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "ingestion_chunks_indexed_total",
			Help:      "Chunk records upserted into the index",
		},
	)

	EmbedFileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "ingestion_embed_file_duration_seconds",
			Help:      "End-to-end embed_file duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)

var ingestionMetricsRegistered bool

// RegisterIngestionMetrics registers ingestion metrics. Must be called once from main.
func RegisterIngestionMetrics() {
	if ingestionMetricsRegistered {
		return
	}
	prometheus.MustRegister(FilesProcessedTotal)
	prometheus.MustRegister(ChunksIndexedTotal)
	prometheus.MustRegister(EmbedFileDuration)
	ingestionMetricsRegistered = true
}
