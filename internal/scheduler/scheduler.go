// Package scheduler consumes the live price feed and converts Active orders
// whose trigger condition is met into fire events for the execution
// coordinator.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/pkg/types"
)

// FireEvent asks the execution coordinator to execute one order (or one
// ladder rung of it).
type FireEvent struct {
	OrderID   string
	SubAmount uint64
	RungIndex int  // -1 for non-ladder orders
	Final     bool // true when the order has moved to Triggered
	Price     float64
}

// Scheduler watches the price stream and evaluates Active orders on every
// observation. Claiming an order (or a rung) goes through the order book's
// conditional transition, which guarantees at most one in-flight execution
// per order per rung: a lost race is silently skipped.
type Scheduler struct {
	book          *orderbook.Book
	logger        *zap.Logger
	priceChan     <-chan *types.PriceUpdate
	fireChan      chan *FireEvent
	sweepInterval time.Duration
	lastSeen      map[string]time.Time // mint -> newest observation handled
	ctx           context.Context
	wg            sync.WaitGroup
}

// Config holds scheduler configuration.
type Config struct {
	Book           *orderbook.Book
	PriceChannel   <-chan *types.PriceUpdate
	FireBufferSize int
	SweepInterval  time.Duration
	Logger         *zap.Logger
}

// New creates a trigger scheduler.
func New(cfg *Config) *Scheduler {
	return &Scheduler{
		book:          cfg.Book,
		logger:        cfg.Logger,
		priceChan:     cfg.PriceChannel,
		fireChan:      make(chan *FireEvent, cfg.FireBufferSize),
		sweepInterval: cfg.SweepInterval,
		lastSeen:      make(map[string]time.Time),
	}
}

// Start launches the price consumer and the TTL sweeper.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("scheduler-starting", zap.Duration("sweep-interval", s.sweepInterval))

	s.wg.Add(2)
	go s.consumeLoop()
	go s.sweepLoop()

	return nil
}

// consumeLoop is the single consumer of the price stream. Evaluation of
// eligible orders fans out to independent goroutines so one slow order never
// blocks the stream.
func (s *Scheduler) consumeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("scheduler-stopping")
			return
		case update, ok := <-s.priceChan:
			if !ok {
				s.logger.Info("price-channel-closed")
				return
			}
			s.handleUpdate(update)
		}
	}
}

func (s *Scheduler) handleUpdate(update *types.PriceUpdate) {
	PriceUpdatesTotal.Inc()

	// The feed is at-least-once; duplicates are identified by (mint, timestamp).
	if last, ok := s.lastSeen[update.Mint]; ok && !update.ObservedAt.After(last) {
		DuplicateUpdatesTotal.Inc()
		return
	}
	s.lastSeen[update.Mint] = update.ObservedAt

	orders := s.book.ActiveByMint(update.Mint)
	if len(orders) == 0 {
		return
	}

	start := time.Now()
	var evalWG sync.WaitGroup
	for _, order := range orders {
		evalWG.Add(1)
		go func() {
			defer evalWG.Done()
			s.evaluate(order, update.Price)
		}()
	}
	evalWG.Wait()
	EvaluationDurationSeconds.Observe(time.Since(start).Seconds())
}

// evaluate fires the order (or its matching rungs) if the price satisfies
// its trigger condition.
func (s *Scheduler) evaluate(order *types.Order, price float64) {
	EvaluationsTotal.Inc()

	if len(order.Ladder) > 0 {
		s.evaluateLadder(order, price)
		return
	}

	if !triggerMet(order.Kind, order.Side, price, order.TriggerPrice) {
		return
	}

	err := s.book.Transition(order.ID, types.StateActive, types.StateTriggered)
	if err != nil {
		// Another evaluation or a cancel claimed the order first.
		if errors.Is(err, types.ErrInvalidTransition) {
			LostRacesTotal.Inc()
			return
		}
		s.logger.Warn("trigger-transition-failed",
			zap.String("order-id", order.ID),
			zap.Error(err))
		return
	}

	s.fire(&FireEvent{
		OrderID:   order.ID,
		SubAmount: order.Remaining,
		RungIndex: -1,
		Final:     true,
		Price:     price,
	})
}

func (s *Scheduler) evaluateLadder(order *types.Order, price float64) {
	for i, rung := range order.Ladder {
		if rung.Fired {
			continue
		}
		if !triggerMet(order.Kind, order.Side, price, rung.TriggerPrice) {
			continue
		}

		subAmount, final, err := s.book.ClaimRung(order.ID, i)
		if err != nil {
			if errors.Is(err, types.ErrInvalidTransition) {
				LostRacesTotal.Inc()
				continue
			}
			s.logger.Warn("rung-claim-failed",
				zap.String("order-id", order.ID),
				zap.Int("rung", i),
				zap.Error(err))
			continue
		}

		s.fire(&FireEvent{
			OrderID:   order.ID,
			SubAmount: subAmount,
			RungIndex: i,
			Final:     final,
			Price:     price,
		})

		if final {
			return
		}
	}
}

// triggerMet is the trigger evaluation rule. Limit buys and stop-losses
// trigger at or below the threshold; limit sells and take-profits trigger at
// or above it. Market orders never watch the feed.
func triggerMet(kind types.OrderKind, side types.Side, price, trigger float64) bool {
	switch kind {
	case types.KindLimit:
		if side == types.SideBuy {
			return price <= trigger
		}
		return price >= trigger
	case types.KindTakeProfit:
		return price >= trigger
	case types.KindStopLoss:
		return price <= trigger
	default:
		return false
	}
}

// fire hands the event to the coordinator. The order is already claimed, so
// the send must not be dropped; it blocks until the coordinator drains the
// channel or the scheduler shuts down.
func (s *Scheduler) fire(ev *FireEvent) {
	select {
	case s.fireChan <- ev:
		FiresTotal.WithLabelValues(result(ev.Final)).Inc()
		s.logger.Info("order-fired",
			zap.String("order-id", ev.OrderID),
			zap.Uint64("sub-amount", ev.SubAmount),
			zap.Int("rung", ev.RungIndex),
			zap.Bool("final", ev.Final),
			zap.Float64("price", ev.Price))
	case <-s.ctx.Done():
	}
}

func result(final bool) string {
	if final {
		return "final"
	}
	return "partial"
}

// sweepLoop periodically expires Active orders past their time-to-live.
// The sweep needs no price observation.
func (s *Scheduler) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.book.SweepExpired(time.Now())
		}
	}
}

// FireChan returns the stream of fire events for the execution coordinator.
func (s *Scheduler) FireChan() <-chan *FireEvent {
	return s.fireChan
}

// Close waits for the loops to stop and closes the fire stream.
func (s *Scheduler) Close() error {
	s.logger.Info("closing-scheduler")
	s.wg.Wait()
	close(s.fireChan)
	return nil
}
