package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

// ConsoleStorage implements Storage by logging, for local runs without a
// database.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{logger: logger}
}

// RecordOrderEvent logs one order state transition.
func (c *ConsoleStorage) RecordOrderEvent(ctx context.Context, ev *types.OrderEvent) error {
	c.logger.Info("order-event",
		zap.String("order-id", ev.OrderID),
		zap.String("account", ev.Account),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.Time("at", ev.At))
	return nil
}

// RecordReceipt logs one execution receipt.
func (c *ConsoleStorage) RecordReceipt(ctx context.Context, receipt *types.Receipt) error {
	c.logger.Info("receipt",
		zap.String("receipt-id", receipt.ID),
		zap.String("order-id", receipt.OrderID),
		zap.String("account", receipt.Account),
		zap.String("venue", receipt.VenueID),
		zap.String("signature", receipt.Signature),
		zap.Uint64("in-amount", receipt.InAmount),
		zap.Uint64("out-amount", receipt.OutAmount),
		zap.Uint64("slot", receipt.Slot),
		zap.Int("attempts", receipt.Attempts))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

var _ Storage = (*ConsoleStorage)(nil)
