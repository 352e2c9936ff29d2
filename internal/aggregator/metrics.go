package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoundsTotal tracks aggregation rounds.
	RoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_aggregator_rounds_total",
		Help: "Total number of best-quote aggregation rounds",
	})

	// RoundDurationSeconds tracks time to complete a round.
	RoundDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soltrade_aggregator_round_duration_seconds",
		Help:    "Duration of best-quote aggregation rounds",
		Buckets: prometheus.DefBuckets,
	})

	// NoRouteTotal tracks rounds that produced no executable quote.
	NoRouteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_aggregator_no_route_total",
		Help: "Total number of rounds that returned no route",
	})

	// VenuesSkippedTotal tracks venues skipped for being unhealthy.
	VenuesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_aggregator_venues_skipped_total",
			Help: "Times a venue was skipped because it was unhealthy",
		},
		[]string{"venue"},
	)

	// ExpiredQuotesTotal tracks quotes discarded past their validity window.
	ExpiredQuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_aggregator_expired_quotes_total",
			Help: "Quotes discarded because their validity window elapsed before ranking",
		},
		[]string{"venue"},
	)

	// ProbesTotal tracks recovery probes against unhealthy venues.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_aggregator_probes_total",
			Help: "Recovery probes issued to unhealthy venues",
		},
		[]string{"venue", "result"},
	)
)
