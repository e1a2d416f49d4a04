package main

import (
	"context"
	"database/sql"
	"log"

	"stockgate/cmd/server/config"
	inventorydb "stockgate/internal/db/inventory"
	"stockgate/internal/inventory"
)

var openDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildLedger picks the stock ledger backend: Postgres when DATABASE_URL is
// set, otherwise an in-memory ledger with optional file journal recovery.
func buildLedger(ctx context.Context, cfg config.StorageConfig) (inventory.Ledger, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := openDB("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		ledger, err := inventorydb.NewPostgresLedgerWithSchema(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err := ledger.Seed(ctx, inventory.SeedCatalog()); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				log.Printf("close inventory db: %v", err)
			}
		}
		return ledger, cleanup, nil
	}

	if cfg.JournalPath != "" {
		journal, err := inventory.NewFileJournal(cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		ledger, err := inventory.NewMemoryLedgerWithRecovery(inventory.SeedCatalog(), journal)
		if err != nil {
			_ = journal.Close()
			return nil, nil, err
		}
		cleanup := func() {
			if err := journal.Close(); err != nil {
				log.Printf("close inventory journal: %v", err)
			}
		}
		return ledger, cleanup, nil
	}

	return inventory.NewMemoryLedger(inventory.SeedCatalog(), nil), func() {}, nil
}
