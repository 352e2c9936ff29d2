// Package orderbook keeps pending conditional orders and owns their state
// machine. Transitions are compare-and-swap on the order's current state, so
// a scheduler evaluation and a user cancel can race safely: exactly one wins.
package orderbook

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

// allowedTransitions is the order state graph.
var allowedTransitions = map[types.OrderState]map[types.OrderState]bool{
	types.StatePending: {
		types.StateActive: true,
	},
	types.StateActive: {
		types.StateTriggered: true,
		types.StateCancelled: true,
		types.StateExpired:   true,
	},
	types.StateTriggered: {
		types.StateFilled: true,
		types.StateFailed: true,
		types.StateActive: true, // transient execution failure, re-arm
	},
}

// Book is the in-memory store of conditional orders. The map lock only
// guards lookups; each order carries its own lock, so transitions on
// different orders never serialize.
type Book struct {
	mu        sync.RWMutex
	orders    map[string]*entry
	logger    *zap.Logger
	eventChan chan *types.OrderEvent
	retention time.Duration
	sweepTick time.Duration
	nowFn     func() time.Time
	ctx       context.Context
	wg        sync.WaitGroup
}

type entry struct {
	mu         sync.Mutex
	order      *types.Order
	terminalAt time.Time
}

// Config holds order book configuration.
type Config struct {
	Logger          *zap.Logger
	EventBufferSize int
	Retention       time.Duration // how long terminal orders stay readable for audit
	SweepInterval   time.Duration
}

// New creates an empty order book.
func New(cfg *Config) *Book {
	return &Book{
		orders:    make(map[string]*entry),
		logger:    cfg.Logger,
		eventChan: make(chan *types.OrderEvent, cfg.EventBufferSize),
		retention: cfg.Retention,
		sweepTick: cfg.SweepInterval,
		nowFn:     time.Now,
	}
}

// Start launches the retention sweeper.
func (b *Book) Start(ctx context.Context) error {
	b.ctx = ctx
	b.logger.Info("orderbook-starting",
		zap.Duration("retention", b.retention),
		zap.Duration("sweep-interval", b.sweepTick))

	b.wg.Add(1)
	go b.sweepLoop()

	return nil
}

// Insert validates the order, assigns it an id and stores it in Pending
// state. Remaining is initialized to the full amount.
func (b *Book) Insert(order *types.Order) (string, error) {
	err := order.Validate()
	if err != nil {
		return "", fmt.Errorf("validate order: %w", err)
	}

	now := b.nowFn()
	stored := order.Clone()
	stored.ID = uuid.New().String()
	stored.Remaining = stored.Amount
	stored.State = types.StatePending
	stored.CreatedAt = now
	stored.UpdatedAt = now

	b.mu.Lock()
	b.orders[stored.ID] = &entry{order: stored}
	OrdersTracked.Set(float64(len(b.orders)))
	b.mu.Unlock()

	b.emit(&types.OrderEvent{
		OrderID: stored.ID,
		Account: stored.Account,
		From:    "",
		To:      types.StatePending,
		At:      now,
	})

	b.logger.Info("order-inserted",
		zap.String("order-id", stored.ID),
		zap.String("account", stored.Account),
		zap.String("kind", string(stored.Kind)),
		zap.String("side", string(stored.Side)),
		zap.Uint64("amount", stored.Amount))

	return stored.ID, nil
}

// Get returns a copy of the order.
func (b *Book) Get(id string) (*types.Order, error) {
	e := b.lookup(id)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Clone(), nil
}

// Transition atomically moves the order from an expected prior state to a
// new state. Fails with types.ErrInvalidTransition when the order is not in
// the expected state or the edge is not in the state graph; the losing caller
// re-reads and decides whether to retry.
func (b *Book) Transition(id string, from, to types.OrderState) error {
	e := b.lookup(id)
	if e == nil {
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}

	e.mu.Lock()
	order := e.order
	if order.State != from {
		e.mu.Unlock()
		TransitionsTotal.WithLabelValues(string(from), string(to), "lost_race").Inc()
		return fmt.Errorf("%w: %s is %s, expected %s", types.ErrInvalidTransition, id, order.State, from)
	}
	if !allowedTransitions[from][to] {
		e.mu.Unlock()
		TransitionsTotal.WithLabelValues(string(from), string(to), "forbidden").Inc()
		return fmt.Errorf("%w: %s -> %s is not a legal edge", types.ErrInvalidTransition, from, to)
	}

	now := b.nowFn()
	order.State = to
	order.UpdatedAt = now
	if to.Terminal() {
		e.terminalAt = now
	}
	account := order.Account
	e.mu.Unlock()

	TransitionsTotal.WithLabelValues(string(from), string(to), "ok").Inc()
	b.emit(&types.OrderEvent{
		OrderID: id,
		Account: account,
		From:    from,
		To:      to,
		At:      now,
	})

	b.logger.Debug("order-transitioned",
		zap.String("order-id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return nil
}

// ClaimRung atomically claims one unfired ladder rung of an Active order:
// it marks the rung fired and reduces the remaining amount. When the claimed
// rung is the last one, the order moves Active -> Triggered and final is
// true; intermediate rungs leave the order Active. At most one caller can
// ever claim a given rung.
func (b *Book) ClaimRung(id string, rungIndex int) (subAmount uint64, final bool, err error) {
	e := b.lookup(id)
	if e == nil {
		return 0, false, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}

	e.mu.Lock()
	order := e.order
	if order.State != types.StateActive {
		e.mu.Unlock()
		return 0, false, fmt.Errorf("%w: %s is %s, expected %s", types.ErrInvalidTransition, id, order.State, types.StateActive)
	}
	if rungIndex < 0 || rungIndex >= len(order.Ladder) {
		e.mu.Unlock()
		return 0, false, fmt.Errorf("%w: rung %d out of range", types.ErrNotFound, rungIndex)
	}
	rung := &order.Ladder[rungIndex]
	if rung.Fired {
		e.mu.Unlock()
		return 0, false, fmt.Errorf("%w: rung %d already claimed", types.ErrInvalidTransition, rungIndex)
	}

	now := b.nowFn()
	rung.Fired = true
	if rung.SubAmount > order.Remaining {
		subAmount = order.Remaining
	} else {
		subAmount = rung.SubAmount
	}
	order.Remaining -= subAmount
	order.UpdatedAt = now

	final = true
	for i := range order.Ladder {
		if !order.Ladder[i].Fired {
			final = false
			break
		}
	}
	if final {
		order.State = types.StateTriggered
	}
	account := order.Account
	e.mu.Unlock()

	RungsClaimedTotal.Inc()
	if final {
		TransitionsTotal.WithLabelValues(string(types.StateActive), string(types.StateTriggered), "ok").Inc()
		b.emit(&types.OrderEvent{
			OrderID: id,
			Account: account,
			From:    types.StateActive,
			To:      types.StateTriggered,
			At:      now,
		})
	}

	b.logger.Debug("rung-claimed",
		zap.String("order-id", id),
		zap.Int("rung", rungIndex),
		zap.Uint64("sub-amount", subAmount),
		zap.Bool("final", final))

	return subAmount, final, nil
}

// ListActiveByAccount returns the account's Active orders ordered by
// creation time.
func (b *Book) ListActiveByAccount(account string) []*types.Order {
	return b.collect(func(o *types.Order) bool {
		return o.Account == account && o.State == types.StateActive
	})
}

// ActiveByMint returns Active orders whose trigger watches the given mint.
func (b *Book) ActiveByMint(mint string) []*types.Order {
	return b.collect(func(o *types.Order) bool {
		return o.State == types.StateActive && o.WatchMint() == mint
	})
}

// SweepExpired transitions Active orders past their time-to-live to Expired
// and returns the swept ids. Orders without a TTL are never swept.
func (b *Book) SweepExpired(now time.Time) []string {
	candidates := b.collect(func(o *types.Order) bool {
		return o.State == types.StateActive && !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
	})

	swept := make([]string, 0, len(candidates))
	for _, order := range candidates {
		// Re-checked under the order lock; a concurrent trigger wins cleanly.
		err := b.Transition(order.ID, types.StateActive, types.StateExpired)
		if err != nil {
			continue
		}
		swept = append(swept, order.ID)
	}

	if len(swept) > 0 {
		OrdersExpiredTotal.Add(float64(len(swept)))
		b.logger.Info("orders-expired", zap.Int("count", len(swept)))
	}

	return swept
}

// Events returns the stream of state-change events for the persistence
// collaborator.
func (b *Book) Events() <-chan *types.OrderEvent {
	return b.eventChan
}

func (b *Book) lookup(id string) *entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orders[id]
}

func (b *Book) collect(keep func(*types.Order) bool) []*types.Order {
	b.mu.RLock()
	entries := make([]*entry, 0, len(b.orders))
	for _, e := range b.orders {
		entries = append(entries, e)
	}
	b.mu.RUnlock()

	matched := make([]*types.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.order) {
			matched = append(matched, e.order.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched
}

// sweepLoop drops terminal orders once the audit retention window passes.
func (b *Book) sweepLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.sweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.logger.Info("orderbook-sweeper-stopping")
			return
		case <-ticker.C:
			b.dropAged(b.nowFn())
		}
	}
}

func (b *Book) dropAged(now time.Time) {
	b.mu.Lock()
	dropped := 0
	for id, e := range b.orders {
		e.mu.Lock()
		aged := e.order.State.Terminal() && !e.terminalAt.IsZero() && now.Sub(e.terminalAt) > b.retention
		e.mu.Unlock()
		if aged {
			delete(b.orders, id)
			dropped++
		}
	}
	OrdersTracked.Set(float64(len(b.orders)))
	b.mu.Unlock()

	if dropped > 0 {
		b.logger.Debug("terminal-orders-dropped", zap.Int("count", dropped))
	}
}

func (b *Book) emit(ev *types.OrderEvent) {
	select {
	case b.eventChan <- ev:
	default:
		b.logger.Warn("order-event-channel-full",
			zap.String("order-id", ev.OrderID),
			zap.String("to", string(ev.To)))
		EventsDroppedTotal.Inc()
	}
}

// Close waits for the sweeper and closes the event stream.
func (b *Book) Close() error {
	b.logger.Info("closing-orderbook")
	b.wg.Wait()
	close(b.eventChan)
	return nil
}
