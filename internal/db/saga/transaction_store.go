package sagadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stockgate/internal/saga"
)

// TransactionStore persists idempotency keys and saga steps in Postgres.
type TransactionStore struct {
	db *sql.DB
}

// NewTransactionStore constructs a TransactionStore backed by Postgres.
func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// NewTransactionStoreWithSchema initializes the schema then returns the store.
func NewTransactionStoreWithSchema(ctx context.Context, db *sql.DB) (*TransactionStore, error) {
	store := NewTransactionStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates transaction tables if they do not exist.
func (s *TransactionStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS order_transactions (
			order_id TEXT PRIMARY KEY,
			idempotency_key TEXT UNIQUE NOT NULL,
			product_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_transaction_steps (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (order_id) REFERENCES order_transactions(order_id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// Start inserts a new transaction or returns the existing one for the
// idempotency key.
func (s *TransactionStore) Start(ctx context.Context, idempotencyKey, orderID string, productID, quantity int) (saga.TransactionRecord, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_transactions (order_id, idempotency_key, product_id, quantity, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		orderID, idempotencyKey, productID, quantity, saga.TransactionStarted,
	)
	if err != nil {
		return saga.TransactionRecord{}, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return saga.TransactionRecord{}, false, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, product_id, quantity, status
		FROM order_transactions
		WHERE idempotency_key = $1`,
		idempotencyKey,
	)

	var record saga.TransactionRecord
	var status string
	if err := row.Scan(&record.OrderID, &record.ProductID, &record.Quantity, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return saga.TransactionRecord{}, false, fmt.Errorf("transaction not found after insert")
		}
		return saga.TransactionRecord{}, false, err
	}
	record.Status = saga.TransactionStatus(status)

	if record.ProductID != productID || record.Quantity != quantity {
		return saga.TransactionRecord{}, false, saga.ErrIdempotencyConflict
	}

	return record, affected == 1, nil
}

// UpdateStatus updates the transaction's status and timestamp.
func (s *TransactionStore) UpdateStatus(ctx context.Context, orderID string, status saga.TransactionStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE order_transactions
		SET status = $2, updated_at = NOW()
		WHERE order_id = $1`,
		orderID, status,
	)
	return err
}

// AddStep appends a step row.
func (s *TransactionStore) AddStep(ctx context.Context, orderID, step, status, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_transaction_steps (order_id, step, status, detail)
		VALUES ($1, $2, $3, $4)`,
		orderID, step, status, detail,
	)
	return err
}
