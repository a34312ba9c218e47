package order

import (
	"time"

	"farmlink-be/internal/pricing"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// DeliveryStatus is the delivery sub-state, independent of the order status.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryConfirmed DeliveryStatus = "confirmed"
	DeliveryInTransit DeliveryStatus = "in-transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryConfirmed, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentPaystack       PaymentMethod = "paystack"
	PaymentFlutterwave    PaymentMethod = "flutterwave"
	PaymentBankTransfer   PaymentMethod = "bank-transfer"
	PaymentCashOnDelivery PaymentMethod = "cash-on-delivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPaystack, PaymentFlutterwave, PaymentBankTransfer, PaymentCashOnDelivery:
		return true
	}
	return false
}

type PaymentState string

const (
	PaymentStatusPending  PaymentState = "pending"
	PaymentStatusPaid     PaymentState = "paid"
	PaymentStatusFailed   PaymentState = "failed"
	PaymentStatusRefunded PaymentState = "refunded"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated caller of an operation, supplied by the
// identity layer. The core trusts it.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// LineItem carries the price snapshot taken at order time. Later catalog
// price changes never alter a placed order.
type LineItem struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
	UnitPrice int64
	Unit      string
	Subtotal  int64
}

type Delivery struct {
	Method         pricing.DeliveryMethod
	Address        string
	ScheduledDate  time.Time
	ScheduledTime  string
	Status         DeliveryStatus
	TrackingNumber string
}

type PaymentInfo struct {
	Method        PaymentMethod
	Status        PaymentState
	TransactionID string
	PaidAt        *time.Time
}

// TimelineEntry records one accepted status transition. The timeline is
// append-only: entries are never mutated or reordered.
type TimelineEntry struct {
	Status    Status
	Timestamp time.Time
	Note      string
	ActorID   uuid.UUID
}

// Rating is attachable once, by the buyer, after delivery.
type Rating struct {
	Quality       int
	Delivery      int
	Communication int
	Overall       int
	Review        string
}

const (
	RatingMin    = 1
	RatingMax    = 5
	MaxReviewLen = 500
	MaxNotesLen  = 500
)

func (r Rating) Validate() error {
	for _, v := range []int{r.Quality, r.Delivery, r.Communication, r.Overall} {
		if v < RatingMin || v > RatingMax {
			return ErrInvalidRating
		}
	}
	if len(r.Review) > MaxReviewLen {
		return ErrReviewTooLong
	}
	return nil
}

type Order struct {
	ID        uuid.UUID
	Number    string
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	Items     []LineItem
	Pricing   pricing.Breakdown
	Delivery  Delivery
	Payment   PaymentInfo
	Status    Status
	Notes     string
	Timeline  []TimelineEntry
	Rating    *Rating
	CreatedAt time.Time
	UpdatedAt time.Time
}
