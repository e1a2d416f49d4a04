package saga

import (
	"context"
	"errors"
	"sync"
)

// TransactionStatus captures the current state of a stored order transaction.
type TransactionStatus string

const (
	TransactionStarted      TransactionStatus = "started"
	TransactionCompleted    TransactionStatus = "completed"
	TransactionRejected     TransactionStatus = "rejected"
	TransactionCompensated  TransactionStatus = "compensated"
	TransactionInconsistent TransactionStatus = "inconsistent"
)

// TransactionStatus maps a terminal Outcome to its stored status.
func (o Outcome) TransactionStatus() TransactionStatus {
	switch o {
	case OutcomeCompleted:
		return TransactionCompleted
	case OutcomeRejectedNoStock:
		return TransactionRejected
	case OutcomeFailedAndCompensated:
		return TransactionCompensated
	case OutcomeCriticalInconsistency:
		return TransactionInconsistent
	}
	return TransactionStarted
}

// Outcome maps a stored status back to its Outcome. terminal is false for a
// transaction that is still in flight.
func (s TransactionStatus) Outcome() (outcome Outcome, terminal bool) {
	switch s {
	case TransactionCompleted:
		return OutcomeCompleted, true
	case TransactionRejected:
		return OutcomeRejectedNoStock, true
	case TransactionCompensated:
		return OutcomeFailedAndCompensated, true
	case TransactionInconsistent:
		return OutcomeCriticalInconsistency, true
	}
	return "", false
}

// TransactionRecord represents a stored transaction entry.
type TransactionRecord struct {
	OrderID   string
	ProductID int
	Quantity  int
	Status    TransactionStatus
}

// TransactionLog persists idempotency keys and saga steps.
type TransactionLog interface {
	Start(ctx context.Context, idempotencyKey, orderID string, productID, quantity int) (TransactionRecord, bool, error)
	UpdateStatus(ctx context.Context, orderID string, status TransactionStatus) error
	AddStep(ctx context.Context, orderID, step, status, detail string) error
}

var ErrIdempotencyConflict = errors.New("idempotency key reused with different payload")

// MemoryLog is an in-memory TransactionLog for tests and single-node setups.
type MemoryLog struct {
	mu     sync.Mutex
	byKey  map[string]string
	byID   map[string]*TransactionRecord
	steps  map[string][]StepRecord
	keyFor map[string]string
}

// StepRecord is one recorded step transition.
type StepRecord struct {
	Step   string
	Status string
	Detail string
}

// NewMemoryLog constructs an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		byKey:  make(map[string]string),
		byID:   make(map[string]*TransactionRecord),
		steps:  make(map[string][]StepRecord),
		keyFor: make(map[string]string),
	}
}

// Start inserts a new transaction or returns the existing one for the key.
func (l *MemoryLog) Start(ctx context.Context, idempotencyKey, orderID string, productID, quantity int) (TransactionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return TransactionRecord{}, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existingID, ok := l.byKey[idempotencyKey]; ok {
		record := l.byID[existingID]
		if record.ProductID != productID || record.Quantity != quantity {
			return TransactionRecord{}, false, ErrIdempotencyConflict
		}
		return *record, false, nil
	}

	record := &TransactionRecord{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    TransactionStarted,
	}
	l.byKey[idempotencyKey] = orderID
	l.byID[orderID] = record
	l.keyFor[orderID] = idempotencyKey
	return *record, true, nil
}

// UpdateStatus updates the stored transaction's status.
func (l *MemoryLog) UpdateStatus(ctx context.Context, orderID string, status TransactionStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.byID[orderID]
	if !ok {
		return errors.New("transaction not found")
	}
	record.Status = status
	return nil
}

// AddStep appends a step transition.
func (l *MemoryLog) AddStep(ctx context.Context, orderID, step, status, detail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps[orderID] = append(l.steps[orderID], StepRecord{Step: step, Status: status, Detail: detail})
	return nil
}

// Steps returns the recorded steps for an order (for testing/inspection).
func (l *MemoryLog) Steps(orderID string) []StepRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]StepRecord, len(l.steps[orderID]))
	copy(out, l.steps[orderID])
	return out
}

// Record returns the stored transaction, if any (for testing/inspection).
func (l *MemoryLog) Record(orderID string) (TransactionRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.byID[orderID]
	if !ok {
		return TransactionRecord{}, false
	}
	return *record, true
}
