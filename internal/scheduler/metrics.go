package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PriceUpdatesTotal tracks feed observations consumed.
	PriceUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_scheduler_price_updates_total",
		Help: "Price observations consumed from the feed",
	})

	// DuplicateUpdatesTotal tracks deduplicated observations.
	DuplicateUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_scheduler_duplicate_updates_total",
		Help: "Price observations skipped as duplicates",
	})

	// EvaluationsTotal tracks per-order trigger evaluations.
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_scheduler_evaluations_total",
		Help: "Order trigger evaluations performed",
	})

	// EvaluationDurationSeconds tracks time to evaluate all orders for one update.
	EvaluationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soltrade_scheduler_evaluation_duration_seconds",
		Help:    "Time spent evaluating eligible orders for one price observation",
		Buckets: prometheus.DefBuckets,
	})

	// FiresTotal tracks fire events emitted.
	FiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_scheduler_fires_total",
			Help: "Fire events emitted to the execution coordinator",
		},
		[]string{"kind"},
	)

	// LostRacesTotal tracks evaluations that lost the claim race.
	LostRacesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_scheduler_lost_races_total",
		Help: "Trigger claims skipped because another caller won the transition",
	})
)
