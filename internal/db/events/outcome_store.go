package eventsdb

import (
	"context"
	"database/sql"

	"stockgate/internal/events"
)

// PostgresOutcomeStore keeps the full order event history in Postgres.
type PostgresOutcomeStore struct {
	db *sql.DB
}

// NewPostgresOutcomeStore constructs an OutcomeStore backed by Postgres.
func NewPostgresOutcomeStore(db *sql.DB) *PostgresOutcomeStore {
	return &PostgresOutcomeStore{db: db}
}

// NewPostgresOutcomeStoreWithSchema initializes the schema then returns the
// store.
func NewPostgresOutcomeStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresOutcomeStore, error) {
	store := NewPostgresOutcomeStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the order events table if it does not exist.
func (s *PostgresOutcomeStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_events (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			product_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Record appends the event to the history table.
func (s *PostgresOutcomeStore) Record(ctx context.Context, evt events.OrderEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_events (order_id, product_id, quantity, outcome, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		evt.OrderID, evt.ProductID, evt.Quantity, string(evt.Outcome), evt.Timestamp.UTC(),
	)
	return err
}
