package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

func newMockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger, _ := zap.NewDevelopment()
	return newPostgresWithDB(db, logger), mock
}

func testReceipt() *types.Receipt {
	return &types.Receipt{
		ID:        "receipt-1",
		OrderID:   "order-1",
		Account:   "trader-1",
		VenueID:   "jupiter",
		Signature: "5Sig111",
		Pair: types.Pair{
			InputMint:  "So11111111111111111111111111111111111111112",
			OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		},
		Side:        types.SideBuy,
		InAmount:    1_000_000,
		OutAmount:   153_000_000,
		Slot:        123,
		Attempts:    1,
		ConfirmedAt: time.Now(),
	}
}

func TestPostgres_RecordOrderEvent(t *testing.T) {
	store, mock := newMockStorage(t)

	at := time.Now()
	mock.ExpectExec("INSERT INTO order_events").
		WithArgs("order-1", "trader-1", "active", "triggered", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordOrderEvent(context.Background(), &types.OrderEvent{
		OrderID: "order-1",
		Account: "trader-1",
		From:    types.StateActive,
		To:      types.StateTriggered,
		At:      at,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_RecordReceipt(t *testing.T) {
	store, mock := newMockStorage(t)
	receipt := testReceipt()

	mock.ExpectExec("INSERT INTO receipts").
		WithArgs(
			receipt.ID, receipt.OrderID, receipt.Account, receipt.VenueID, receipt.Signature,
			receipt.Pair.InputMint, receipt.Pair.OutputMint, "buy",
			int64(1_000_000), int64(153_000_000), int64(123), 1, receipt.ConfirmedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordReceipt(context.Background(), receipt)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_RecordReceipt_DatabaseError(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO receipts").
		WillReturnError(fmt.Errorf("connection reset"))

	err := store.RecordReceipt(context.Background(), testReceipt())
	if err == nil {
		t.Fatal("expected the database error to surface")
	}
}

func TestPostgres_Close(t *testing.T) {
	store, mock := newMockStorage(t)
	mock.ExpectClose()

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConsoleStorage(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewConsoleStorage(logger)

	err := store.RecordOrderEvent(context.Background(), &types.OrderEvent{
		OrderID: "order-1",
		To:      types.StateActive,
		At:      time.Now(),
	})
	if err != nil {
		t.Errorf("record event: %v", err)
	}

	err = store.RecordReceipt(context.Background(), testReceipt())
	if err != nil {
		t.Errorf("record receipt: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
