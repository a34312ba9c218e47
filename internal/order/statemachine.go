package order

// transitions is the full fulfillment state machine. Any pair not listed
// here is illegal regardless of which actor requests it.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidTransitionError for any pair outside
// the transition table. Pure: the order itself is never touched.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether a status ends the fulfillment flow. Delivered
// is terminal apart from the single delivered -> refunded path.
func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

// AllowedNext returns the legal next statuses for a given status.
func AllowedNext(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}
