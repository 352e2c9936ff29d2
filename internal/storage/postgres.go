package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// newPostgresWithDB wires an existing connection, used by tests.
func newPostgresWithDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

// RecordOrderEvent appends one order state transition.
func (p *PostgresStorage) RecordOrderEvent(ctx context.Context, ev *types.OrderEvent) error {
	query := `
		INSERT INTO order_events (order_id, account, from_state, to_state, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := p.db.ExecContext(ctx, query,
		ev.OrderID,
		ev.Account,
		string(ev.From),
		string(ev.To),
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}

	p.logger.Debug("order-event-stored",
		zap.String("order-id", ev.OrderID),
		zap.String("to", string(ev.To)))

	return nil
}

// RecordReceipt appends one execution receipt.
func (p *PostgresStorage) RecordReceipt(ctx context.Context, receipt *types.Receipt) error {
	query := `
		INSERT INTO receipts (
			id, order_id, account, venue_id, signature,
			input_mint, output_mint, side, in_amount, out_amount,
			slot, attempts, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := p.db.ExecContext(ctx, query,
		receipt.ID,
		receipt.OrderID,
		receipt.Account,
		receipt.VenueID,
		receipt.Signature,
		receipt.Pair.InputMint,
		receipt.Pair.OutputMint,
		string(receipt.Side),
		int64(receipt.InAmount),
		int64(receipt.OutAmount),
		int64(receipt.Slot),
		receipt.Attempts,
		receipt.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	p.logger.Debug("receipt-stored",
		zap.String("receipt-id", receipt.ID),
		zap.String("venue", receipt.VenueID),
		zap.String("signature", receipt.Signature))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

var _ Storage = (*PostgresStorage)(nil)
