package saga

import (
	"context"
	"errors"
	"testing"
	"time"
)

type spyInventory struct {
	reserveCalls int
	releaseCalls int
	reserveErr   error
	releaseErr   error

	releaseCtxErr error
}

func (s *spyInventory) Reserve(ctx context.Context, productID, quantity int) error {
	s.reserveCalls++
	return s.reserveErr
}

func (s *spyInventory) Release(ctx context.Context, productID, quantity int) error {
	s.releaseCalls++
	s.releaseCtxErr = ctx.Err()
	return s.releaseErr
}

type spyPayment struct {
	calls int
	err   error
}

func (s *spyPayment) Charge(ctx context.Context, req OrderRequest) error {
	s.calls++
	return s.err
}

func noLog(format string, args ...any) {}

func TestExecute_Completed(t *testing.T) {
	inventory := &spyInventory{}
	payment := &spyPayment{}
	c := NewCoordinator(inventory, payment, 0, noLog)

	outcome := c.Execute(context.Background(), OrderRequest{ProductID: 1, Quantity: 10}, nil)
	if outcome != OutcomeCompleted {
		t.Fatalf("expected %q, got %q", OutcomeCompleted, outcome)
	}
	if inventory.reserveCalls != 1 {
		t.Fatalf("expected 1 reserve, got %d", inventory.reserveCalls)
	}
	if inventory.releaseCalls != 0 {
		t.Fatalf("expected no release on the happy path, got %d", inventory.releaseCalls)
	}
	if payment.calls != 1 {
		t.Fatalf("expected 1 charge, got %d", payment.calls)
	}
}

func TestExecute_RejectedNoStock_SkipsPayment(t *testing.T) {
	inventory := &spyInventory{reserveErr: ErrInsufficientStock}
	payment := &spyPayment{}
	c := NewCoordinator(inventory, payment, 0, noLog)

	outcome := c.Execute(context.Background(), OrderRequest{ProductID: 2, Quantity: 1}, nil)
	if outcome != OutcomeRejectedNoStock {
		t.Fatalf("expected %q, got %q", OutcomeRejectedNoStock, outcome)
	}
	if payment.calls != 0 {
		t.Fatalf("expected payment never invoked, got %d calls", payment.calls)
	}
	if inventory.releaseCalls != 0 {
		t.Fatalf("expected no release when nothing was reserved, got %d", inventory.releaseCalls)
	}
}

func TestExecute_ReserveTransportFaultBehavesLikeRejection(t *testing.T) {
	inventory := &spyInventory{reserveErr: errors.New("dial tcp: connection refused")}
	payment := &spyPayment{}
	c := NewCoordinator(inventory, payment, 0, noLog)

	outcome := c.Execute(context.Background(), OrderRequest{ProductID: 1, Quantity: 1}, nil)
	if outcome != OutcomeRejectedNoStock {
		t.Fatalf("expected %q, got %q", OutcomeRejectedNoStock, outcome)
	}
	if payment.calls != 0 {
		t.Fatalf("expected payment never invoked, got %d calls", payment.calls)
	}
}

func TestExecute_ChargeFails_Compensated(t *testing.T) {
	inventory := &spyInventory{}
	payment := &spyPayment{err: ErrPaymentDeclined}
	c := NewCoordinator(inventory, payment, 0, noLog)

	outcome := c.Execute(context.Background(), OrderRequest{ProductID: 1, Quantity: 10}, nil)
	if outcome != OutcomeFailedAndCompensated {
		t.Fatalf("expected %q, got %q", OutcomeFailedAndCompensated, outcome)
	}
	if inventory.releaseCalls != 1 {
		t.Fatalf("expected exactly 1 release, got %d", inventory.releaseCalls)
	}
}

func TestExecute_ChargeAndReleaseFail_CriticalInconsistency(t *testing.T) {
	inventory := &spyInventory{releaseErr: errors.New("inventory unreachable")}
	payment := &spyPayment{err: ErrPaymentDeclined}
	c := NewCoordinator(inventory, payment, 0, noLog)

	outcome := c.Execute(context.Background(), OrderRequest{ProductID: 1, Quantity: 10}, nil)
	if outcome != OutcomeCriticalInconsistency {
		t.Fatalf("expected %q, got %q", OutcomeCriticalInconsistency, outcome)
	}
	if inventory.releaseCalls != 1 {
		t.Fatalf("expected exactly 1 release attempt, got %d", inventory.releaseCalls)
	}
}

func TestExecute_CallerCancelDoesNotAbandonCompensation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inventory := &spyInventory{}
	payment := &spyPayment{err: errors.New("payment gateway timeout")}
	c := NewCoordinator(inventory, payment, time.Second, noLog)

	// Cancel before the charge step resolves; the release call must still run
	// on a context that is not canceled.
	cancel()
	outcome := c.Execute(ctx, OrderRequest{ProductID: 1, Quantity: 10}, nil)
	if outcome != OutcomeFailedAndCompensated {
		t.Fatalf("expected %q, got %q", OutcomeFailedAndCompensated, outcome)
	}
	if inventory.releaseCalls != 1 {
		t.Fatalf("expected release to run despite cancellation, got %d calls", inventory.releaseCalls)
	}
	if inventory.releaseCtxErr != nil {
		t.Fatalf("expected release context free of caller cancellation, got %v", inventory.releaseCtxErr)
	}
}

func TestExecute_StepTimeoutApplied(t *testing.T) {
	inventory := &spyInventory{}
	slowCharge := &blockingPayment{}
	c := NewCoordinator(inventory, slowCharge, 10*time.Millisecond, noLog)

	outcome := c.Execute(context.Background(), OrderRequest{ProductID: 1, Quantity: 1}, nil)
	if outcome != OutcomeFailedAndCompensated {
		t.Fatalf("expected timed-out charge to be compensated, got %q", outcome)
	}
}

type blockingPayment struct{}

func (b *blockingPayment) Charge(ctx context.Context, req OrderRequest) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestExecute_RecordsSteps(t *testing.T) {
	inventory := &spyInventory{releaseErr: errors.New("boom")}
	payment := &spyPayment{err: ErrPaymentDeclined}
	c := NewCoordinator(inventory, payment, 0, noLog)

	var got []string
	record := func(step, status, detail string) {
		got = append(got, step+":"+status)
	}

	c.Execute(context.Background(), OrderRequest{ProductID: 1, Quantity: 10}, record)

	want := []string{"reserve:ok", "charge:failed", "release:failed"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (OrderRequest{ProductID: -1, Quantity: 1}).Validate(); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
	if err := (OrderRequest{ProductID: 1, Quantity: 0}).Validate(); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if err := (OrderRequest{ProductID: 0, Quantity: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOutcomeRetryable(t *testing.T) {
	if !OutcomeRejectedNoStock.Retryable() || !OutcomeFailedAndCompensated.Retryable() {
		t.Fatalf("expected rejection and compensation to be retryable")
	}
	if OutcomeCompleted.Retryable() || OutcomeCriticalInconsistency.Retryable() {
		t.Fatalf("expected completion and inconsistency to be non-retryable")
	}
}
