// Package payment simulates the payment gateway the order saga charges
// against. The real gateway is out of scope; the simulation reproduces its
// shape: a binary approved/declined outcome plus a fault channel.
package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"stockgate/internal/saga"
)

// DefaultDeclineThreshold mirrors the reference gateway: a draw in [0,10)
// must beat this value for the charge to be approved.
const DefaultDeclineThreshold = 5

// Simulated approves or declines charges based on an injected random source,
// so tests can pin the outcome by seeding it.
type Simulated struct {
	mu        sync.Mutex
	rng       *rand.Rand
	threshold int
}

// NewSimulated constructs a Simulated gateway. A negative threshold falls back
// to DefaultDeclineThreshold.
func NewSimulated(seed int64, threshold int) *Simulated {
	if threshold < 0 {
		threshold = DefaultDeclineThreshold
	}
	return &Simulated{
		rng:       rand.New(rand.NewSource(seed)),
		threshold: threshold,
	}
}

// Charge draws an outcome for the request.
func (p *Simulated) Charge(ctx context.Context, req saga.OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	draw := p.rng.Intn(10)
	p.mu.Unlock()

	if draw > p.threshold {
		return nil
	}
	return fmt.Errorf("%w: insufficient funds on card", saga.ErrPaymentDeclined)
}

// Static always returns the configured error; a nil error approves everything.
type Static struct {
	Err error
}

// Charge returns the configured outcome.
func (p *Static) Charge(ctx context.Context, req saga.OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Err
}
