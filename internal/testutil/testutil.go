// Package testutil provides shared fakes for engine tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dcastillo/soltrade/pkg/types"
)

// MockAdapter is a venue adapter with pluggable behavior.
type MockAdapter struct {
	VenueID string
	QuoteFn func(ctx context.Context, pair types.Pair, amount uint64, side types.Side) (*types.Quote, error)
	BuildFn func(ctx context.Context, quote *types.Quote, signerPublicKey string) (*types.UnsignedTransaction, error)

	mu         sync.Mutex
	quoteCalls int
	buildCalls int
}

// ID returns the mock venue identifier.
func (m *MockAdapter) ID() string { return m.VenueID }

// Quote invokes the configured quote hook.
func (m *MockAdapter) Quote(ctx context.Context, pair types.Pair, amount uint64, side types.Side) (*types.Quote, error) {
	m.mu.Lock()
	m.quoteCalls++
	m.mu.Unlock()

	if m.QuoteFn == nil {
		return nil, fmt.Errorf("no quote hook configured for %s", m.VenueID)
	}
	return m.QuoteFn(ctx, pair, amount, side)
}

// BuildTransaction invokes the configured build hook.
func (m *MockAdapter) BuildTransaction(ctx context.Context, quote *types.Quote, signerPublicKey string) (*types.UnsignedTransaction, error) {
	m.mu.Lock()
	m.buildCalls++
	m.mu.Unlock()

	if m.BuildFn == nil {
		return &types.UnsignedTransaction{VenueID: m.VenueID, Base64: "dGVzdC10eG4="}, nil
	}
	return m.BuildFn(ctx, quote, signerPublicKey)
}

// QuoteCalls returns how many times Quote was invoked.
func (m *MockAdapter) QuoteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteCalls
}

// BuildCalls returns how many times BuildTransaction was invoked.
func (m *MockAdapter) BuildCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildCalls
}

// NewQuote builds a fresh, valid quote for a venue.
func NewQuote(venueID string, pair types.Pair, in, out uint64, impact float64) *types.Quote {
	return &types.Quote{
		VenueID:     venueID,
		Pair:        pair,
		Side:        types.SideBuy,
		InAmount:    in,
		OutAmount:   out,
		PriceImpact: impact,
		FetchedAt:   time.Now(),
		ValidFor:    10 * time.Second,
	}
}

// MockStorage records order events and receipts in memory.
type MockStorage struct {
	mu       sync.Mutex
	Events   []*types.OrderEvent
	Receipts []*types.Receipt
}

// RecordOrderEvent stores the event.
func (m *MockStorage) RecordOrderEvent(ctx context.Context, ev *types.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

// RecordReceipt stores the receipt.
func (m *MockStorage) RecordReceipt(ctx context.Context, receipt *types.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Receipts = append(m.Receipts, receipt)
	return nil
}

// Close is a no-op.
func (m *MockStorage) Close() error { return nil }

// ReceiptCount returns the number of recorded receipts.
func (m *MockStorage) ReceiptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Receipts)
}
