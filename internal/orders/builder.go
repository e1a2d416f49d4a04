package orders

import (
	"context"
	"database/sql"
	"log"
	"time"

	sagadb "stockgate/internal/db/saga"
	"stockgate/internal/events"
	"stockgate/internal/saga"
)

// BuildService wires a Service from config (Postgres DSN and logger). If the
// DSN is empty or initialization fails, it falls back to an in-memory
// transaction log. The returned cleanup closes any external resources.
func BuildService(ctx context.Context, dsn string, inventory saga.InventoryClient, payments saga.PaymentClient, publisher events.Publisher, stepTimeout time.Duration, logf func(format string, args ...any)) (*Service, func()) {
	if logf == nil {
		logf = log.Printf
	}

	cleanup := func() {}
	var txlog saga.TransactionLog = saga.NewMemoryLog()

	if dsn != "" {
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			logf("postgres open failed, falling back to in-memory transaction log: %v", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			store, err := sagadb.NewTransactionStoreWithSchema(setupCtx, sqlDB)
			if err != nil {
				logf("postgres init failed, falling back to in-memory transaction log: %v", err)
				_ = sqlDB.Close()
			} else {
				logf("postgres transaction log enabled")
				txlog = store
				cleanup = func() {
					if err := sqlDB.Close(); err != nil {
						logf("close postgres: %v", err)
					}
				}
			}
		}
	}

	coordinator := saga.NewCoordinator(inventory, payments, stepTimeout, logf)
	return NewService(txlog, coordinator, publisher, nil, nil, logf), cleanup
}
