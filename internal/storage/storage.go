// Package storage is the append-only persistence collaborator: it records
// order state-change events and execution receipts emitted by the engine.
package storage

import (
	"context"

	"github.com/dcastillo/soltrade/pkg/types"
)

// Storage is the interface for recording engine output.
type Storage interface {
	// RecordOrderEvent appends one order state transition.
	RecordOrderEvent(ctx context.Context, ev *types.OrderEvent) error

	// RecordReceipt appends one execution receipt.
	RecordReceipt(ctx context.Context, receipt *types.Receipt) error

	// Close closes the storage connection.
	Close() error
}
