package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTracked exposes the number of orders currently in the book.
	OrdersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soltrade_orderbook_orders_tracked",
		Help: "Number of orders currently held by the order book",
	})

	// TransitionsTotal tracks state transitions by edge and outcome.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soltrade_orderbook_transitions_total",
			Help: "Order state transition attempts",
		},
		[]string{"from", "to", "result"},
	)

	// RungsClaimedTotal tracks ladder rung claims.
	RungsClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_orderbook_rungs_claimed_total",
		Help: "Ladder rungs claimed for execution",
	})

	// OrdersExpiredTotal tracks orders swept past their time-to-live.
	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_orderbook_orders_expired_total",
		Help: "Orders transitioned to expired by the TTL sweep",
	})

	// EventsDroppedTotal tracks state-change events dropped on a full buffer.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soltrade_orderbook_events_dropped_total",
		Help: "Order events dropped because the event channel was full",
	})
)
