package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stockgate/internal/saga"
)

type stubStore struct {
	events []OrderEvent
	err    error
}

func (s *stubStore) Record(ctx context.Context, evt OrderEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

type stubBroadcaster struct {
	messages [][]byte
}

func (s *stubBroadcaster) Broadcast(msg []byte) {
	s.messages = append(s.messages, msg)
}

func sampleEvent() OrderEvent {
	return OrderEvent{
		OrderID:   "order-1",
		ProductID: 1,
		Quantity:  10,
		Outcome:   saga.OutcomeCompleted,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStorePublisher(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	publisher := NewStorePublisher(store)

	if err := publisher.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(store.events) != 1 || store.events[0].OrderID != "order-1" {
		t.Fatalf("unexpected events: %+v", store.events)
	}
}

func TestFanoutPublisher_BroadcastsTypedPayload(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	broadcaster := &stubBroadcaster{}
	publisher := NewFanoutPublisher(NewStorePublisher(store), broadcaster)

	if err := publisher.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}
	if len(broadcaster.messages) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(broadcaster.messages))
	}

	var payload map[string]any
	if err := json.Unmarshal(broadcaster.messages[0], &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["type"] != "order_outcome" || payload["order_id"] != "order-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestFanoutPublisher_StorageErrorSkipsBroadcast(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("redis down")}
	broadcaster := &stubBroadcaster{}
	publisher := NewFanoutPublisher(NewStorePublisher(store), broadcaster)

	if err := publisher.Publish(context.Background(), sampleEvent()); err == nil {
		t.Fatalf("expected error")
	}
	if len(broadcaster.messages) != 0 {
		t.Fatalf("expected no broadcast on storage failure, got %d", len(broadcaster.messages))
	}
}

func TestFanoutPublisher_NilSides(t *testing.T) {
	t.Parallel()

	publisher := NewFanoutPublisher(nil, nil)
	if err := publisher.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestMultiStore_CollectsErrors(t *testing.T) {
	t.Parallel()

	failing := &stubStore{err: errors.New("boom")}
	working := &stubStore{}
	multi := NewMultiStore(failing, working)

	err := multi.Record(context.Background(), sampleEvent())
	if err == nil {
		t.Fatalf("expected error from failing store")
	}
	if len(working.events) != 1 {
		t.Fatalf("expected working store to still record, got %d events", len(working.events))
	}
}
