package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr",
		Subsystem: "import",
		Name:      "jobs_total",
		Help:      "Import jobs finished, labeled by terminal status.",
	}, []string{"status"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Rows processed across all jobs, labeled by outcome.",
	}, []string{"outcome"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr",
		Subsystem: "import",
		Name:      "batches_total",
		Help:      "Entity batches applied, labeled by result.",
	}, []string{"result"})

	txRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "okr",
		Subsystem: "import",
		Name:      "tx_retries_total",
		Help:      "Transaction attempts retried after a transient failure.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "okr",
		Subsystem: "import",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of import jobs from start to terminal status.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
