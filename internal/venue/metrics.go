package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuoteRequestsTotal tracks quote calls per venue and result.
	QuoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_venue_quote_requests_total",
			Help: "Total number of quote requests issued to venues",
		},
		[]string{"venue", "result"},
	)

	// QuoteLatencySeconds tracks quote call latency per venue.
	QuoteLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soltrade_venue_quote_latency_seconds",
			Help:    "Latency of venue quote calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"venue"},
	)

	// BuildRequestsTotal tracks transaction-build calls per venue and result.
	BuildRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_venue_build_requests_total",
			Help: "Total number of build-transaction requests issued to venues",
		},
		[]string{"venue", "result"},
	)

	// VenueHealthy exposes each venue's health as 1/0.
	VenueHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soltrade_venue_healthy",
			Help: "Whether the venue is currently considered healthy (1) or not (0)",
		},
		[]string{"venue"},
	)

	// ConsecutiveFailures exposes each venue's consecutive-failure count.
	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soltrade_venue_consecutive_failures",
			Help: "Consecutive failed calls per venue",
		},
		[]string{"venue"},
	)
)
