package types

import (
	"time"

	json "github.com/goccy/go-json"
)

// Quote is one venue's priced route for a pair and amount at a point in time.
type Quote struct {
	VenueID     string        `json:"venue_id"`
	Pair        Pair          `json:"pair"`
	Side        Side          `json:"side"`
	InAmount    uint64        `json:"in_amount"`
	OutAmount   uint64        `json:"out_amount"`
	PriceImpact float64       `json:"price_impact"` // fraction, 0.01 = 1%
	FeeAmount   uint64        `json:"fee_amount"`   // in output units
	Route       []string      `json:"route"`        // intermediate pool ids, in hop order
	FetchedAt   time.Time     `json:"fetched_at"`
	ValidFor    time.Duration `json:"valid_for"`

	// Payload carries the venue's raw quote response, replayed verbatim when
	// the winning venue builds the transaction.
	Payload json.RawMessage `json:"-"`
}

// Expired reports whether the quote's validity window has elapsed. Expired
// quotes must never be submitted; callers re-fetch instead.
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.FetchedAt.Add(q.ValidFor))
}

// NetOutput is the ranking score: output after venue fee, discounted by the
// quoted price impact.
func (q *Quote) NetOutput() float64 {
	afterFee := float64(q.OutAmount) - float64(q.FeeAmount)
	if afterFee < 0 {
		afterFee = 0
	}
	return afterFee * (1.0 - q.PriceImpact)
}
