package order

import (
	"errors"
	"fmt"
)

var (
	// -- Validation & input --
	ErrEmptyCart             = errors.New("order must contain at least one item")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrAddressRequired       = errors.New("delivery address is required for delivery orders")
	ErrInvalidDeliveryMethod = errors.New("invalid delivery method")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidDeliveryStatus = errors.New("invalid delivery status")
	ErrNotesTooLong          = errors.New("notes cannot exceed 500 characters")
	ErrInvalidRating         = errors.New("rating values must be between 1 and 5")
	ErrReviewTooLong         = errors.New("review cannot exceed 500 characters")

	// -- Resource state --
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrMultiSellerCart    = errors.New("order items must belong to a single seller")
	ErrOrderNotDelivered  = errors.New("order must be delivered before rating")
	ErrAlreadyRated       = errors.New("order has already been rated")
	ErrOrderConflict      = errors.New("order was modified concurrently, retry")

	// -- Authorization --
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotBuyer     = errors.New("only the order's buyer may perform this action")
)

// InvalidTransitionError names both the current and the requested status.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}
