package order

// DefaultTransitionPolicy is the capability check used by the HTTP layer.
// It decides who may request a transition; whether the transition itself is
// legal stays with the state machine.
//
//   - admins may request any transition
//   - buyers may cancel their own order while it is pending or confirmed
//   - sellers drive fulfillment on their own orders and may cancel
//   - refunds are an admin-only operation
func DefaultTransitionPolicy(actor Actor, o *Order, next Status) error {
	if actor.Role == RoleAdmin {
		return nil
	}

	switch actor.Role {
	case RoleBuyer:
		if o.BuyerID != actor.ID {
			return ErrUnauthorized
		}
		if next == StatusCancelled && (o.Status == StatusPending || o.Status == StatusConfirmed) {
			return nil
		}
		return ErrUnauthorized

	case RoleSeller:
		if o.SellerID != actor.ID {
			return ErrUnauthorized
		}
		switch next {
		case StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
			return nil
		}
		return ErrUnauthorized
	}

	return ErrUnauthorized
}
