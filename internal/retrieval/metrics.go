package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts gateway queries.
	// Labels: result (success, error, invalid)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procrag",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total number of retrieval queries",
		},
		[]string{"result"},
	)

	// DeepeningsTotal counts re-issued deeper index queries.
	DeepeningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procrag",
			Subsystem: "retrieval",
			Name:      "deepenings_total",
			Help:      "Total number of deeper re-queries after filter attrition",
		},
	)

	// FilteredOutTotal counts candidates dropped by each filter stage.
	// Labels: stage (category, step_range)
	FilteredOutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procrag",
			Subsystem: "retrieval",
			Name:      "filtered_out_total",
			Help:      "Candidates removed by metadata filters",
		},
		[]string{"stage"},
	)

	// QueryDuration tracks end-to-end gateway latency.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "procrag",
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Duration of retrieval queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
