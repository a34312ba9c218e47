package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger is a mutex-guarded in-memory implementation. Used by tests and
// local development; the check-and-decrement stays atomic under the lock.
type MemoryLedger struct {
	mu    sync.Mutex
	stock map[uuid.UUID]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{stock: make(map[uuid.UUID]int)}
}

// Seed sets the available quantity for a product.
func (l *MemoryLedger) Seed(productID uuid.UUID, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] = qty
}

// Available reports the current counter. Test helper, not part of Ledger.
func (l *MemoryLedger) Available(productID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[productID]
}

func (l *MemoryLedger) Reserve(_ context.Context, productID uuid.UUID, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.stock[productID]
	if !ok {
		return ErrUnknownProduct
	}
	if available < qty {
		return ErrInsufficientStock
	}

	l.stock[productID] = available - qty
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, productID uuid.UUID, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.stock[productID]
	if !ok {
		return ErrUnknownProduct
	}

	l.stock[productID] = available + qty
	return nil
}
