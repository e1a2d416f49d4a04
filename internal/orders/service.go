package orders

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockgate/internal/events"
	"stockgate/internal/saga"
)

var (
	// ErrIdempotencyKeyRequired signals a request without an idempotency key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrTransactionInFlight signals a reused key whose transaction has not
	// reached a terminal outcome yet.
	ErrTransactionInFlight = errors.New("transaction still in flight")
)

// Coordinator runs one order transaction to a terminal outcome.
type Coordinator interface {
	Execute(ctx context.Context, req saga.OrderRequest, record saga.StepFunc) saga.Outcome
}

// Service exposes order creation on top of the saga coordinator, adding order
// identity, idempotency and outcome notification.
type Service struct {
	txlog      saga.TransactionLog
	saga       Coordinator
	publisher  events.Publisher
	newOrderID func() string
	now        func() time.Time
	logf       func(format string, args ...any)
}

// NewService constructs a Service. publisher may be nil; nil newOrderID, now
// and logf fall back to uuid order ids, time.Now and log.Printf.
func NewService(txlog saga.TransactionLog, coordinator Coordinator, publisher events.Publisher, newOrderID func() string, now func() time.Time, logf func(format string, args ...any)) *Service {
	if newOrderID == nil {
		newOrderID = func() string { return "order-" + uuid.NewString() }
	}
	if now == nil {
		now = time.Now
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Service{
		txlog:      txlog,
		saga:       coordinator,
		publisher:  publisher,
		newOrderID: newOrderID,
		now:        now,
		logf:       logf,
	}
}

// CreateOrder runs one order transaction. A reused idempotency key with the
// same payload replays the stored outcome instead of re-running the saga.
func (s *Service) CreateOrder(ctx context.Context, idempotencyKey string, productID, quantity int) (string, saga.Outcome, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return "", "", ErrIdempotencyKeyRequired
	}

	req := saga.OrderRequest{ProductID: productID, Quantity: quantity}
	if err := req.Validate(); err != nil {
		return "", "", err
	}

	orderID := s.newOrderID()
	record, fresh, err := s.txlog.Start(ctx, idempotencyKey, orderID, productID, quantity)
	if err != nil {
		return "", "", err
	}
	if !fresh {
		outcome, terminal := record.Status.Outcome()
		if !terminal {
			return record.OrderID, "", ErrTransactionInFlight
		}
		return record.OrderID, outcome, nil
	}

	// Log and event writes must land even when the caller goes away mid-saga;
	// the saga itself already detaches its compensation step.
	logCtx := context.WithoutCancel(ctx)

	outcome := s.saga.Execute(ctx, req, func(step, status, detail string) {
		if err := s.txlog.AddStep(logCtx, orderID, step, status, detail); err != nil {
			s.logf("record step %s for %s: %v", step, orderID, err)
		}
	})

	if err := s.txlog.UpdateStatus(logCtx, orderID, outcome.TransactionStatus()); err != nil {
		s.logf("record outcome %s for %s: %v", outcome, orderID, err)
	}

	if s.publisher != nil {
		evt := events.OrderEvent{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  quantity,
			Outcome:   outcome,
			Timestamp: s.now(),
		}
		if err := s.publisher.Publish(logCtx, evt); err != nil {
			s.logf("publish outcome for %s: %v", orderID, err)
		}
	}

	return orderID, outcome, nil
}
