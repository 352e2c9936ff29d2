package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal tracks pipeline runs by trigger and result.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_execution_runs_total",
			Help: "Execution pipeline runs",
		},
		[]string{"trigger", "result"},
	)

	// ExecutionDurationSeconds tracks end-to-end pipeline latency.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soltrade_execution_duration_seconds",
		Help:    "Duration of execution pipelines",
		Buckets: prometheus.DefBuckets,
	})

	// AttemptsTotal tracks submission attempts by channel and outcome.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_execution_attempts_total",
			Help: "Submission attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// SubmissionsTotal tracks raw submit calls by channel and result.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_execution_submissions_total",
			Help: "Transaction submissions by channel",
		},
		[]string{"channel", "result"},
	)

	// SlippageAbortsTotal tracks executions aborted by the slippage guard.
	SlippageAbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_execution_slippage_aborts_total",
		Help: "Executions aborted because price impact exceeded tolerance",
	})

	// QuoteRefreshesTotal tracks quotes discarded for lapsing before submit.
	QuoteRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_execution_quote_refreshes_total",
		Help: "Quotes discarded because their validity lapsed before submission",
	})

	// JitterDelaySeconds tracks applied anti-MEV submission jitter.
	JitterDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soltrade_execution_jitter_delay_seconds",
		Help:    "Anti-MEV submission jitter applied before signing",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)
