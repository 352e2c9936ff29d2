package types

import (
	"fmt"
	"time"
)

// Side is the direction of a trade relative to the traded token.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind distinguishes immediate from conditional intents.
type OrderKind string

const (
	KindMarket     OrderKind = "market"
	KindLimit      OrderKind = "limit"
	KindStopLoss   OrderKind = "stop_loss"
	KindTakeProfit OrderKind = "take_profit"
)

// OrderState is the lifecycle state of an order.
//
//	Pending   -> Active
//	Active    -> Triggered | Cancelled | Expired
//	Triggered -> Filled | Failed | Active (transient execution failure, re-arm)
type OrderState string

const (
	StatePending   OrderState = "pending"
	StateActive    OrderState = "active"
	StateTriggered OrderState = "triggered"
	StateFilled    OrderState = "filled"
	StateCancelled OrderState = "cancelled"
	StateExpired   OrderState = "expired"
	StateFailed    OrderState = "failed"
)

// Terminal reports whether the state ends the order's lifecycle.
func (s OrderState) Terminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateExpired, StateFailed:
		return true
	}
	return false
}

// Pair identifies a swap direction between two token mints.
type Pair struct {
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
}

// Rung is one threshold of a ladder order. Percent is the share of the
// original amount this rung submits; SubAmount is that share in raw units.
type Rung struct {
	TriggerPrice float64 `json:"trigger_price"`
	Percent      float64 `json:"percent"`
	SubAmount    uint64  `json:"sub_amount"`
	Fired        bool    `json:"fired"`
}

// Order is one conditional or immediate trade intent. Amounts are raw base
// units of the input mint.
type Order struct {
	ID           string     `json:"id"`
	Account      string     `json:"account"`
	Pair         Pair       `json:"pair"`
	Side         Side       `json:"side"`
	Amount       uint64     `json:"amount"`
	Remaining    uint64     `json:"remaining"`
	Kind         OrderKind  `json:"kind"`
	TriggerPrice float64    `json:"trigger_price,omitempty"`
	Ladder       []Rung     `json:"ladder,omitempty"`
	AntiMEV      bool       `json:"anti_mev"`
	State        OrderState `json:"state"`
	ExpiresAt    time.Time  `json:"expires_at,omitempty"` // zero means no TTL
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Validate checks the order invariants before it enters the book.
func (o *Order) Validate() error {
	if o.Account == "" {
		return fmt.Errorf("account cannot be empty")
	}
	if o.Pair.InputMint == "" || o.Pair.OutputMint == "" {
		return fmt.Errorf("both mints must be set")
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("side must be %q or %q, got %q", SideBuy, SideSell, o.Side)
	}
	if o.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}

	switch o.Kind {
	case KindMarket:
		if o.TriggerPrice != 0 {
			return fmt.Errorf("market order cannot carry a trigger price")
		}
	case KindLimit, KindStopLoss, KindTakeProfit:
		if len(o.Ladder) == 0 && o.TriggerPrice <= 0 {
			return fmt.Errorf("%s order requires a positive trigger price", o.Kind)
		}
	default:
		return fmt.Errorf("unknown order kind %q", o.Kind)
	}

	if len(o.Ladder) > 0 {
		totalPercent := 0.0
		for i, rung := range o.Ladder {
			if rung.TriggerPrice <= 0 {
				return fmt.Errorf("rung %d requires a positive trigger price", i)
			}
			if rung.Percent <= 0 {
				return fmt.Errorf("rung %d requires a positive percent", i)
			}
			if rung.SubAmount == 0 || rung.SubAmount > o.Amount {
				return fmt.Errorf("rung %d sub-amount must be positive and within the order amount", i)
			}
			totalPercent += rung.Percent
		}
		if totalPercent > 100.0 {
			return fmt.Errorf("ladder percentages sum to %.2f, must not exceed 100", totalPercent)
		}
	}

	return nil
}

// WatchMint returns the mint whose price drives this order's trigger: the
// token being bought for buys, the token being sold for sells.
func (o *Order) WatchMint() string {
	if o.Side == SideBuy {
		return o.Pair.OutputMint
	}
	return o.Pair.InputMint
}

// Clone returns a deep copy safe to hand across goroutines.
func (o *Order) Clone() *Order {
	cp := *o
	if o.Ladder != nil {
		cp.Ladder = make([]Rung, len(o.Ladder))
		copy(cp.Ladder, o.Ladder)
	}
	return &cp
}

// OrderEvent records one state transition for the persistence collaborator.
type OrderEvent struct {
	OrderID string     `json:"order_id"`
	Account string     `json:"account"`
	From    OrderState `json:"from"`
	To      OrderState `json:"to"`
	At      time.Time  `json:"at"`
}
