package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownProduct    = errors.New("unknown product")
)

// Ledger is the authoritative counter of available quantity per product.
// Reserve and Release are the only operations; raw read-then-write access to
// the counter is deliberately not exposed.
type Ledger interface {
	// Reserve atomically checks and decrements available quantity. It never
	// decrements below zero: of two concurrent requests that together exceed
	// availability, exactly one fails with ErrInsufficientStock.
	Reserve(ctx context.Context, productID uuid.UUID, qty int) error

	// Release is the compensating increment used when a reservation is
	// undone before the order exists (creation rollback). The caller owns
	// exactly-once invocation per compensation event. Cancellation restocks
	// do not go through Release; they ride the status-write transaction via
	// ReleaseTx.
	Release(ctx context.Context, productID uuid.UUID, qty int) error
}
