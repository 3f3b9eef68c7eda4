package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesTotal counts files by outcome.
	// Labels: status (ingested, skipped, failed)
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procrag",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total number of files processed by the ingestion pipeline",
		},
		[]string{"status"},
	)

	// UnitsTotal counts indexed units by category.
	UnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procrag",
			Subsystem: "ingest",
			Name:      "units_total",
			Help:      "Total number of text units indexed",
		},
		[]string{"category"},
	)

	// FileDuration tracks per-file ingestion latency.
	FileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "procrag",
			Subsystem: "ingest",
			Name:      "file_duration_seconds",
			Help:      "Duration of single-file ingestion in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)
