package pricefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soltrade_pricefeed_active_connections",
		Help: "Number of active price feed connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_pricefeed_reconnect_attempts_total",
		Help: "Total number of price feed reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_pricefeed_reconnect_failures_total",
		Help: "Total number of price feed reconnection failures",
	})

	// MessagesReceivedTotal tracks price updates received.
	MessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_pricefeed_updates_received_total",
		Help: "Total number of price updates received",
	})

	// SubscriptionCount tracks actively streamed mints.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soltrade_pricefeed_subscription_count",
		Help: "Number of mints with an active subscription",
	})

	// MessagesDroppedTotal tracks updates dropped by reason.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_pricefeed_updates_dropped_total",
			Help: "Total number of price updates dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks connection lifetime before a disconnect.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soltrade_pricefeed_connection_duration_seconds",
		Help:    "Duration of price feed connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	// UnsubscriptionsTotal tracks mint unsubscriptions.
	UnsubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_pricefeed_unsubscriptions_total",
		Help: "Total number of mint unsubscriptions",
	})
)
