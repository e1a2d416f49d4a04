package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"stockgate/internal/saga"
)

// OrderEvent is the notification emitted when an order transaction reaches a
// terminal outcome.
type OrderEvent struct {
	OrderID   string       `json:"order_id"`
	ProductID int          `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Outcome   saga.Outcome `json:"outcome"`
	Timestamp time.Time    `json:"timestamp"`
}

// OutcomeStore abstracts persistence for order events.
type OutcomeStore interface {
	Record(ctx context.Context, evt OrderEvent) error
}

// Publisher publishes order events.
type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
}

// StorePublisher publishes events to an OutcomeStore.
type StorePublisher struct {
	store OutcomeStore
}

// NewStorePublisher constructs a publisher targeting the given store.
func NewStorePublisher(store OutcomeStore) *StorePublisher {
	return &StorePublisher{store: store}
}

// Publish forwards the event to the store.
func (p *StorePublisher) Publish(ctx context.Context, evt OrderEvent) error {
	return p.store.Record(ctx, evt)
}

// Broadcaster pushes messages to connected clients.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// FanoutPublisher forwards events to storage and broadcasts them.
type FanoutPublisher struct {
	storage     Publisher
	broadcaster Broadcaster
}

// NewFanoutPublisher constructs a publisher that fans out to storage and
// broadcaster. Either side may be nil.
func NewFanoutPublisher(storage Publisher, broadcaster Broadcaster) *FanoutPublisher {
	return &FanoutPublisher{storage: storage, broadcaster: broadcaster}
}

// Publish writes to storage then broadcasts the event.
func (p *FanoutPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	if p.storage != nil {
		if err := p.storage.Publish(ctx, evt); err != nil {
			return err
		}
	}

	if p.broadcaster == nil {
		return nil
	}

	payload := struct {
		Type string `json:"type"`
		OrderEvent
	}{
		Type:       "order_outcome",
		OrderEvent: evt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.broadcaster.Broadcast(data)
	return nil
}

// MultiStore writes to multiple outcome stores in order.
type MultiStore struct {
	stores []OutcomeStore
}

// NewMultiStore constructs an OutcomeStore that records to each store in
// sequence.
func NewMultiStore(stores ...OutcomeStore) *MultiStore {
	return &MultiStore{stores: stores}
}

// Record forwards the event to each store, collecting errors so all stores get
// a chance to write.
func (m *MultiStore) Record(ctx context.Context, evt OrderEvent) error {
	var errs []error
	for _, store := range m.stores {
		if err := store.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
