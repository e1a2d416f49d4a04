package saga

import (
	"context"
	"errors"
	"log"
	"time"
)

// OrderRequest is the immutable input to one order transaction.
type OrderRequest struct {
	ProductID int
	Quantity  int
}

var (
	ErrInvalidProduct  = errors.New("product id must be >= 0")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
)

// Validate checks the request fields before any remote call is made.
func (r OrderRequest) Validate() error {
	if r.ProductID < 0 {
		return ErrInvalidProduct
	}
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Outcome is the terminal classification of one order transaction.
type Outcome string

const (
	// OutcomeCompleted means the reservation and the charge both succeeded.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRejectedNoStock means the reservation was refused; nothing was
	// applied, the request is safe to retry.
	OutcomeRejectedNoStock Outcome = "rejected_no_stock"
	// OutcomeFailedAndCompensated means the charge failed and the reservation
	// was released; the system is consistent and the request may be retried.
	OutcomeFailedAndCompensated Outcome = "failed_compensated"
	// OutcomeCriticalInconsistency means the charge failed and the release
	// failed too: stock is decremented with no paid order behind it. Requires
	// manual reconciliation, never an automatic retry.
	OutcomeCriticalInconsistency Outcome = "critical_inconsistency"
)

// Retryable reports whether a caller may safely re-run the whole transaction.
func (o Outcome) Retryable() bool {
	return o == OutcomeRejectedNoStock || o == OutcomeFailedAndCompensated
}

// Business rejections collaborators answer with, as opposed to transport
// faults where the collaborator did not answer at all. Both follow the same
// saga branch; they are kept apart for logging.
var (
	ErrUnknownProduct    = errors.New("unknown product")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentDeclined   = errors.New("payment declined")
)

// BusinessRejection reports whether the collaborator said no, rather than
// failing to answer.
func BusinessRejection(err error) bool {
	return errors.Is(err, ErrUnknownProduct) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrPaymentDeclined)
}

// InventoryClient exposes the two stock operations the coordinator drives.
// Reserve applies the stock decrement; Release undoes a prior Reserve and is
// called at most once per successful Reserve.
type InventoryClient interface {
	Reserve(ctx context.Context, productID, quantity int) error
	Release(ctx context.Context, productID, quantity int) error
}

// PaymentClient charges for an order request.
type PaymentClient interface {
	Charge(ctx context.Context, req OrderRequest) error
}

// Step names as recorded in the transaction log.
const (
	StepReserve = "reserve"
	StepCharge  = "charge"
	StepRelease = "release"
)

// Step statuses as recorded in the transaction log.
const (
	StepOK     = "ok"
	StepFailed = "failed"
)

// StepFunc observes step transitions of a running transaction. Implementations
// must not block on the transaction's own collaborators.
type StepFunc func(step, status, detail string)

// Coordinator drives one order transaction through reserve, charge and, when
// the charge fails, release. It holds no state across transactions; concurrent
// Execute calls are independent.
type Coordinator struct {
	inventory   InventoryClient
	payments    PaymentClient
	stepTimeout time.Duration
	logf        func(format string, args ...any)
}

// DefaultStepTimeout bounds each remote call when no timeout is configured.
const DefaultStepTimeout = 5 * time.Second

// NewCoordinator constructs a Coordinator. A zero stepTimeout falls back to
// DefaultStepTimeout; a nil logf falls back to log.Printf.
func NewCoordinator(inventory InventoryClient, payments PaymentClient, stepTimeout time.Duration, logf func(format string, args ...any)) *Coordinator {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Coordinator{
		inventory:   inventory,
		payments:    payments,
		stepTimeout: stepTimeout,
		logf:        logf,
	}
}

// Execute runs the transaction to a terminal Outcome. Steps run strictly in
// order: reserve, then charge, then release only if the charge failed. No
// collaborator error escapes; every call site has a defined next action.
// record may be nil.
func (c *Coordinator) Execute(ctx context.Context, req OrderRequest, record StepFunc) Outcome {
	if record == nil {
		record = func(step, status, detail string) {}
	}

	if err := c.step(ctx, func(stepCtx context.Context) error {
		return c.inventory.Reserve(stepCtx, req.ProductID, req.Quantity)
	}); err != nil {
		c.logf("reserve product=%d qty=%d: %s: %v", req.ProductID, req.Quantity, faultKind(err), err)
		record(StepReserve, StepFailed, err.Error())
		return OutcomeRejectedNoStock
	}
	record(StepReserve, StepOK, "")

	chargeErr := c.step(ctx, func(stepCtx context.Context) error {
		return c.payments.Charge(stepCtx, req)
	})
	if chargeErr == nil {
		record(StepCharge, StepOK, "")
		return OutcomeCompleted
	}
	c.logf("charge product=%d qty=%d: %s: %v; compensating reservation", req.ProductID, req.Quantity, faultKind(chargeErr), chargeErr)
	record(StepCharge, StepFailed, chargeErr.Error())

	// The reservation is already applied, so compensation must finish even if
	// the caller has gone away. Detach from the caller's cancellation and keep
	// only the per-step bound.
	releaseCtx := context.WithoutCancel(ctx)
	if err := c.step(releaseCtx, func(stepCtx context.Context) error {
		return c.inventory.Release(stepCtx, req.ProductID, req.Quantity)
	}); err != nil {
		c.logf("[CRITICAL] release product=%d qty=%d failed after declined charge: %v; stock requires manual reconciliation", req.ProductID, req.Quantity, err)
		record(StepRelease, StepFailed, err.Error())
		return OutcomeCriticalInconsistency
	}
	record(StepRelease, StepOK, "")
	return OutcomeFailedAndCompensated
}

func (c *Coordinator) step(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	defer cancel()
	return fn(stepCtx)
}

func faultKind(err error) string {
	if BusinessRejection(err) {
		return "collaborator rejected"
	}
	return "collaborator fault"
}
