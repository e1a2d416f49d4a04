package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"stockgate/internal/saga"
)

// Item is one stock ledger entry.
type Item struct {
	ProductID int    `json:"product_id"`
	SKU       string `json:"sku"`
	Stock     int    `json:"stock"`
}

// Ledger abstracts the stock ledger behind the reserve/release boundary. All
// mutations are atomic at this boundary; callers never see partial state.
type Ledger interface {
	Reserve(ctx context.Context, productID, quantity int) error
	Release(ctx context.Context, productID, quantity int) error
	Stock(ctx context.Context, productID int) (Item, error)
}

// SeedCatalog returns the default stock the service starts with.
func SeedCatalog() []Item {
	return []Item{
		{ProductID: 1, SKU: "LAPTOP-DELL", Stock: 50},
		{ProductID: 2, SKU: "MOUSE-GAMER", Stock: 0},
	}
}

// Journal records ledger mutations for recovery.
type Journal interface {
	Write(data []byte) error
}

type journalEntry struct {
	ProductID int `json:"product_id"`
	Delta     int `json:"delta"`
}

// MemoryLedger keeps stock in memory with concurrency safety. An optional
// journal makes mutations durable across restarts.
type MemoryLedger struct {
	mu      sync.Mutex
	items   map[int]Item
	journal Journal
}

// NewMemoryLedger constructs a MemoryLedger seeded with the given items.
func NewMemoryLedger(seed []Item, journal Journal) *MemoryLedger {
	items := make(map[int]Item, len(seed))
	for _, item := range seed {
		items[item.ProductID] = item
	}
	return &MemoryLedger{items: items, journal: journal}
}

// NewMemoryLedgerWithRecovery seeds the ledger and replays the journal into it.
func NewMemoryLedgerWithRecovery(seed []Item, journal *FileJournal) (*MemoryLedger, error) {
	ledger := NewMemoryLedger(seed, journal)
	err := journal.Replay(func(data []byte) error {
		var entry journalEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		item, ok := ledger.items[entry.ProductID]
		if !ok {
			item = Item{ProductID: entry.ProductID}
		}
		item.Stock += entry.Delta
		ledger.items[entry.ProductID] = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// Reserve decrements stock if enough is available.
func (l *MemoryLedger) Reserve(ctx context.Context, productID, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[productID]
	if !ok {
		return fmt.Errorf("reserve product %d: %w", productID, saga.ErrUnknownProduct)
	}
	if item.Stock < quantity {
		return fmt.Errorf("reserve product %d: %w: have %d, need %d", productID, saga.ErrInsufficientStock, item.Stock, quantity)
	}

	if err := l.append(productID, -quantity); err != nil {
		return err
	}
	item.Stock -= quantity
	l.items[productID] = item
	return nil
}

// Release returns previously reserved stock to the ledger.
func (l *MemoryLedger) Release(ctx context.Context, productID, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[productID]
	if !ok {
		return fmt.Errorf("release product %d: %w", productID, saga.ErrUnknownProduct)
	}

	if err := l.append(productID, quantity); err != nil {
		return err
	}
	item.Stock += quantity
	l.items[productID] = item
	return nil
}

// Stock returns the current ledger entry for a product.
func (l *MemoryLedger) Stock(ctx context.Context, productID int) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[productID]
	if !ok {
		return Item{}, fmt.Errorf("stock product %d: %w", productID, saga.ErrUnknownProduct)
	}
	return item, nil
}

// append writes the mutation to the journal before applying it. Callers hold
// the ledger lock.
func (l *MemoryLedger) append(productID, delta int) error {
	if l.journal == nil {
		return nil
	}
	data, err := json.Marshal(journalEntry{ProductID: productID, Delta: delta})
	if err != nil {
		return err
	}
	return l.journal.Write(data)
}
