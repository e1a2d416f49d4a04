package inventorydb

import (
	"context"
	"database/sql"
	"fmt"

	"stockgate/internal/inventory"
	"stockgate/internal/saga"
)

// PostgresLedger persists the stock ledger in Postgres. Reserve and Release
// are single guarded UPDATEs, so concurrent transactions on the same product
// serialize at the database.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger constructs a Ledger backed by Postgres.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// NewPostgresLedgerWithSchema initializes the schema then returns the ledger.
func NewPostgresLedgerWithSchema(ctx context.Context, db *sql.DB) (*PostgresLedger, error) {
	ledger := NewPostgresLedger(db)
	if err := ledger.InitSchema(ctx); err != nil {
		return nil, err
	}
	return ledger, nil
}

// InitSchema creates the inventory table if it does not exist.
func (l *PostgresLedger) InitSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS inventory (
			product_id INTEGER PRIMARY KEY,
			sku TEXT NOT NULL,
			stock INTEGER NOT NULL CHECK (stock >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Seed inserts items that are not present yet; existing rows are untouched.
func (l *PostgresLedger) Seed(ctx context.Context, items []inventory.Item) error {
	for _, item := range items {
		_, err := l.db.ExecContext(ctx, `
			INSERT INTO inventory (product_id, sku, stock)
			VALUES ($1, $2, $3)
			ON CONFLICT (product_id) DO NOTHING`,
			item.ProductID, item.SKU, item.Stock,
		)
		if err != nil {
			return fmt.Errorf("seed product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// Reserve decrements stock if enough is available.
func (l *PostgresLedger) Reserve(ctx context.Context, productID, quantity int) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE inventory
		SET stock = stock - $2, updated_at = NOW()
		WHERE product_id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var stock int
	row := l.db.QueryRowContext(ctx, `SELECT stock FROM inventory WHERE product_id = $1`, productID)
	switch scanErr := row.Scan(&stock); scanErr {
	case nil:
		return fmt.Errorf("reserve product %d: %w: have %d, need %d", productID, saga.ErrInsufficientStock, stock, quantity)
	case sql.ErrNoRows:
		return fmt.Errorf("reserve product %d: %w", productID, saga.ErrUnknownProduct)
	default:
		return scanErr
	}
}

// Release returns previously reserved stock to the ledger.
func (l *PostgresLedger) Release(ctx context.Context, productID, quantity int) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE inventory
		SET stock = stock + $2, updated_at = NOW()
		WHERE product_id = $1`,
		productID, quantity,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("release product %d: %w", productID, saga.ErrUnknownProduct)
	}
	return nil
}

// Stock returns the current ledger entry for a product.
func (l *PostgresLedger) Stock(ctx context.Context, productID int) (inventory.Item, error) {
	row := l.db.QueryRowContext(ctx, `SELECT product_id, sku, stock FROM inventory WHERE product_id = $1`, productID)

	var item inventory.Item
	switch err := row.Scan(&item.ProductID, &item.SKU, &item.Stock); err {
	case nil:
		return item, nil
	case sql.ErrNoRows:
		return inventory.Item{}, fmt.Errorf("stock product %d: %w", productID, saga.ErrUnknownProduct)
	default:
		return inventory.Item{}, err
	}
}
