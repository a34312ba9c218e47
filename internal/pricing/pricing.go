package pricing

// All monetary amounts are integer minor units (kobo). Floating point is
// never used for money.

type DeliveryMethod string

const (
	MethodPickup   DeliveryMethod = "pickup"
	MethodDelivery DeliveryMethod = "delivery"
)

func (m DeliveryMethod) Valid() bool {
	return m == MethodPickup || m == MethodDelivery
}

// Params holds the fee schedule. TaxBps is an explicit parameter even though
// the current schedule sets it to zero, so jurisdictional rules can override
// it without touching the formula.
type Params struct {
	DeliveryFee   int64 // flat fee when method is delivery
	ServiceFeeBps int64 // basis points of subtotal
	TaxBps        int64 // basis points of subtotal
	Currency      string
}

func DefaultParams() Params {
	return Params{
		DeliveryFee:   1000,
		ServiceFeeBps: 200,
		TaxBps:        0,
		Currency:      "NGN",
	}
}

// Item is a validated line item as the calculator sees it.
type Item struct {
	UnitPrice int64
	Quantity  int
}

func (i Item) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Breakdown is the order pricing. Total always equals the sum of the other
// four components; it is computed here once and nowhere else.
type Breakdown struct {
	Subtotal    int64
	DeliveryFee int64
	ServiceFee  int64
	Tax         int64
	Total       int64
	Currency    string
}

// Quote computes the pricing breakdown for a line-item set and delivery
// method. Pure: no I/O, same inputs always produce the same breakdown.
func Quote(items []Item, method DeliveryMethod, p Params) Breakdown {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Subtotal()
	}

	var deliveryFee int64
	if method == MethodDelivery {
		deliveryFee = p.DeliveryFee
	}

	serviceFee := subtotal * p.ServiceFeeBps / 10000
	tax := subtotal * p.TaxBps / 10000

	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		ServiceFee:  serviceFee,
		Tax:         tax,
		Total:       subtotal + deliveryFee + serviceFee + tax,
		Currency:    p.Currency,
	}
}

// Consistent reports whether the breakdown still satisfies the pricing
// identity. Orders check this at construction.
func (b Breakdown) Consistent() bool {
	return b.Total == b.Subtotal+b.DeliveryFee+b.ServiceFee+b.Tax
}
