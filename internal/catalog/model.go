package catalog

import "github.com/google/uuid"

type Status string

const (
	StatusActive      Status = "active"
	StatusOutOfSeason Status = "out-of-season"
	StatusSoldOut     Status = "sold-out"
	StatusInactive    Status = "inactive"
)

// Snapshot is the point-in-time view of a product used to price an order.
// Price is in minor units (kobo); orders copy it and never re-read it.
type Snapshot struct {
	ProductID    uuid.UUID
	Name         string
	Unit         string
	Price        int64
	Currency     string
	AvailableQty int
	MinOrderQty  int
	SellerID     uuid.UUID
	Status       Status
}

func (s *Snapshot) Orderable() bool {
	return s.Status == StatusActive
}
