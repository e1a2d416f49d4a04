package eventsdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"stockgate/internal/events"
	"stockgate/internal/saga"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}

	return db, mock, cleanup
}

func TestPostgresOutcomeStore_InitSchema(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	store := NewPostgresOutcomeStore(db)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
}

func TestPostgresOutcomeStore_Record(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO order_events").
		WithArgs("order-1", 1, 10, string(saga.OutcomeFailedAndCompensated), occurred).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	store := NewPostgresOutcomeStore(db)
	err := store.Record(context.Background(), events.OrderEvent{
		OrderID:   "order-1",
		ProductID: 1,
		Quantity:  10,
		Outcome:   saga.OutcomeFailedAndCompensated,
		Timestamp: occurred,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestPostgresOutcomeStore_WithSchemaHelperError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_events").
		WillReturnError(errors.New("boom"))
	mock.ExpectClose()

	store, err := NewPostgresOutcomeStoreWithSchema(context.Background(), db)
	if err == nil {
		t.Fatalf("expected error")
	}
	if store != nil {
		t.Fatalf("expected nil store on error")
	}
}
