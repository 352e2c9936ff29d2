package tokens

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal tracks token metadata fetches by result.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_tokens_lookups_total",
			Help: "Token metadata lookups against the token-list service",
		},
		[]string{"result"},
	)

	// LookupDurationSeconds tracks token metadata fetch latency.
	LookupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soltrade_tokens_lookup_duration_seconds",
		Help:    "Duration of token metadata fetches",
		Buckets: prometheus.DefBuckets,
	})
)
