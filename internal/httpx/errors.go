package httpx

import (
	"errors"
	"net/http"

	"farmlink-be/internal/catalog"
	"farmlink-be/internal/inventory"
	"farmlink-be/internal/order"
	"farmlink-be/internal/reputation"
	"farmlink-be/internal/utils"
)

// writeDomainError maps a domain error onto an HTTP status. Every sentinel
// the services return has a mapping; anything unrecognized is a 500 with a
// generic message so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	var invalid *order.InvalidTransitionError
	if errors.As(err, &invalid) {
		utils.WriteJSONError(w, invalid.Error(), http.StatusUnprocessableEntity)
		return
	}

	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrAddressRequired),
		errors.Is(err, order.ErrInvalidDeliveryMethod),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrInvalidDeliveryStatus),
		errors.Is(err, order.ErrNotesTooLong),
		errors.Is(err, order.ErrInvalidRating),
		errors.Is(err, order.ErrReviewTooLong),
		errors.Is(err, order.ErrMultiSellerCart):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, reputation.ErrScoreNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, order.ErrUnauthorized),
		errors.Is(err, order.ErrNotBuyer):
		utils.WriteJSONError(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, order.ErrOrderConflict),
		errors.Is(err, order.ErrAlreadyRated),
		errors.Is(err, inventory.ErrInsufficientStock):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)

	case errors.Is(err, order.ErrProductUnavailable),
		errors.Is(err, order.ErrOrderNotDelivered):
		utils.WriteJSONError(w, err.Error(), http.StatusUnprocessableEntity)

	default:
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
