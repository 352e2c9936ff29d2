package types

import "time"

// TradeRequest is an immediate trade intent from the user-facing command
// layer. Amount is raw base units of the input mint.
type TradeRequest struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Pair    Pair   `json:"pair"`
	Side    Side   `json:"side"`
	Amount  uint64 `json:"amount"`
	AntiMEV bool   `json:"anti_mev"`
}

// UnsignedTransaction is a venue-built swap transaction awaiting signature.
// The engine treats the payload as opaque bytes.
type UnsignedTransaction struct {
	VenueID string
	Base64  string
}

// SignedTransaction is the signer collaborator's output, ready to submit.
type SignedTransaction struct {
	Base64 string
}

// AttemptOutcome is the terminal classification of one submission attempt.
type AttemptOutcome string

const (
	AttemptPending   AttemptOutcome = "pending"
	AttemptConfirmed AttemptOutcome = "confirmed"
	AttemptRejected  AttemptOutcome = "rejected"
	AttemptTimedOut  AttemptOutcome = "timed_out"
)

// SubmissionAttempt records one transaction-submission try. Attempts live
// only for the duration of a single order's settlement.
type SubmissionAttempt struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"order_id"`
	VenueID     string         `json:"venue_id"`
	Signature   string         `json:"signature"`
	Outcome     AttemptOutcome `json:"outcome"`
	Slot        uint64         `json:"slot"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// Receipt is the confirmed result of one execution, emitted to the
// persistence collaborator and returned to the caller.
type Receipt struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id,omitempty"` // empty for manual trades
	Account     string    `json:"account"`
	VenueID     string    `json:"venue_id"`
	Signature   string    `json:"signature"`
	Pair        Pair      `json:"pair"`
	Side        Side      `json:"side"`
	InAmount    uint64    `json:"in_amount"`
	OutAmount   uint64    `json:"out_amount"`
	Slot        uint64    `json:"slot"`
	Attempts    int       `json:"attempts"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// PriceUpdate is one observation from the price feed.
type PriceUpdate struct {
	Mint       string    `json:"mint"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// TokenInfo is cached token metadata used to convert user-facing decimal
// amounts to raw base units.
type TokenInfo struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}
