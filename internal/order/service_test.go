package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"farmlink-be/internal/catalog"
	"farmlink-be/internal/inventory"
	"farmlink-be/internal/pricing"
	"farmlink-be/internal/reputation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateOrder(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context, scope ListScope, filter *Filter, limit, offset int32) ([]*Order, error) {
	args := m.Called(ctx, scope, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Order), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to Status, entry TimelineEntry, restock []LineItem) error {
	args := m.Called(ctx, orderID, from, to, entry, restock)
	return args.Error(0)
}

func (m *MockRepository) AttachRating(ctx context.Context, orderID uuid.UUID, r Rating) error {
	args := m.Called(ctx, orderID, r)
	return args.Error(0)
}

func (m *MockRepository) UpdatePayment(ctx context.Context, orderID uuid.UUID, status PaymentState, txnID string, paidAt *time.Time) error {
	args := m.Called(ctx, orderID, status, txnID, paidAt)
	return args.Error(0)
}

func (m *MockRepository) UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status DeliveryStatus, tracking string) error {
	args := m.Called(ctx, orderID, status, tracking)
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.Snapshot, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Snapshot), args.Error(1)
}

type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) Recompute(ctx context.Context, sellerID uuid.UUID) (*reputation.Score, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reputation.Score), args.Error(1)
}

func (m *MockAggregator) GetScore(ctx context.Context, sellerID uuid.UUID) (*reputation.Score, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reputation.Score), args.Error(1)
}

// --- Helpers ---

func activeSnapshot(productID, sellerID uuid.UUID, price int64, qty int) *catalog.Snapshot {
	return &catalog.Snapshot{
		ProductID:    productID,
		Name:         "Fresh Tomatoes",
		Unit:         "kg",
		Price:        price,
		Currency:     "NGN",
		AvailableQty: qty,
		MinOrderQty:  1,
		SellerID:     sellerID,
		Status:       catalog.StatusActive,
	}
}

func deliveryInput() DeliveryInput {
	return DeliveryInput{
		Method:        pricing.MethodDelivery,
		Address:       "12 Market Road, Ibadan",
		ScheduledDate: time.Now().Add(48 * time.Hour),
		ScheduledTime: "09:00-12:00",
	}
}

func newTestService(repo Repository, cat catalog.Reader, ledger inventory.Ledger, scores reputation.Aggregator) Service {
	return NewService(repo, cat, ledger, scores, DefaultTransitionPolicy, pricing.DefaultParams(), nil)
}

// --- CreateOrder ---

func TestService_CreateOrder(t *testing.T) {
	ctx := context.Background()
	buyerID := uuid.New()
	sellerID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		cat := new(MockCatalog)
		ledger := inventory.NewMemoryLedger()

		p1 := uuid.New()
		p2 := uuid.New()
		ledger.Seed(p1, 10)
		ledger.Seed(p2, 10)

		cat.On("GetProduct", ctx, p1).Return(activeSnapshot(p1, sellerID, 2500, 10), nil)
		cat.On("GetProduct", ctx, p2).Return(activeSnapshot(p2, sellerID, 1000, 10), nil)

		var created *Order
		repo.On("CreateOrder", ctx, mock.AnythingOfType("*order.Order")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*Order) }).
			Return(nil)

		svc := newTestService(repo, cat, ledger, new(MockAggregator))

		o, err := svc.CreateOrder(ctx, CreateOrderInput{
			BuyerID: buyerID,
			Items: []ItemInput{
				{ProductID: p1, Quantity: 2},
				{ProductID: p2, Quantity: 5},
			},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})

		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, o, created)

		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, buyerID, o.BuyerID)
		assert.Equal(t, sellerID, o.SellerID)
		assert.NotEmpty(t, o.Number)
		assert.Len(t, o.Items, 2)

		// pricing: subtotal 10000, delivery 1000, service 2% = 200
		assert.Equal(t, int64(10000), o.Pricing.Subtotal)
		assert.Equal(t, int64(11200), o.Pricing.Total)
		assert.True(t, o.Pricing.Consistent())

		// initial timeline entry recorded by the buyer
		require.Len(t, o.Timeline, 1)
		assert.Equal(t, StatusPending, o.Timeline[0].Status)
		assert.Equal(t, buyerID, o.Timeline[0].ActorID)

		// stock durably reserved
		assert.Equal(t, 8, ledger.Available(p1))
		assert.Equal(t, 5, ledger.Available(p2))

		repo.AssertExpectations(t)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		svc := newTestService(new(MockRepository), new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		cases := []struct {
			name  string
			input CreateOrderInput
			want  error
		}{
			{
				name:  "EmptyCart",
				input: CreateOrderInput{BuyerID: buyerID, Delivery: deliveryInput(), PaymentMethod: PaymentPaystack},
				want:  ErrEmptyCart,
			},
			{
				name: "ZeroQuantity",
				input: CreateOrderInput{
					BuyerID:       buyerID,
					Items:         []ItemInput{{ProductID: uuid.New(), Quantity: 0}},
					Delivery:      deliveryInput(),
					PaymentMethod: PaymentPaystack,
				},
				want: ErrInvalidQuantity,
			},
			{
				name: "MissingAddress",
				input: CreateOrderInput{
					BuyerID: buyerID,
					Items:   []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
					Delivery: DeliveryInput{
						Method: pricing.MethodDelivery,
					},
					PaymentMethod: PaymentPaystack,
				},
				want: ErrAddressRequired,
			},
			{
				name: "BadPaymentMethod",
				input: CreateOrderInput{
					BuyerID:       buyerID,
					Items:         []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
					Delivery:      deliveryInput(),
					PaymentMethod: PaymentMethod("bitcoin"),
				},
				want: ErrInvalidPaymentMethod,
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.CreateOrder(ctx, tc.input)
				assert.ErrorIs(t, err, tc.want)
			})
		}
	})

	t.Run("ProductNotFound", func(t *testing.T) {
		cat := new(MockCatalog)
		productID := uuid.New()
		cat.On("GetProduct", ctx, productID).Return(nil, catalog.ErrProductNotFound)

		svc := newTestService(new(MockRepository), cat, inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.CreateOrder(ctx, CreateOrderInput{
			BuyerID:       buyerID,
			Items:         []ItemInput{{ProductID: productID, Quantity: 1}},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})

	t.Run("ProductUnavailable", func(t *testing.T) {
		cat := new(MockCatalog)
		productID := uuid.New()
		snap := activeSnapshot(productID, sellerID, 1000, 5)
		snap.Status = catalog.StatusOutOfSeason
		cat.On("GetProduct", ctx, productID).Return(snap, nil)

		svc := newTestService(new(MockRepository), cat, inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.CreateOrder(ctx, CreateOrderInput{
			BuyerID:       buyerID,
			Items:         []ItemInput{{ProductID: productID, Quantity: 1}},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})
		assert.ErrorIs(t, err, ErrProductUnavailable)
	})

	t.Run("MultiSellerCart", func(t *testing.T) {
		cat := new(MockCatalog)
		p1 := uuid.New()
		p2 := uuid.New()
		cat.On("GetProduct", ctx, p1).Return(activeSnapshot(p1, sellerID, 1000, 5), nil)
		cat.On("GetProduct", ctx, p2).Return(activeSnapshot(p2, uuid.New(), 1000, 5), nil)

		ledger := inventory.NewMemoryLedger()
		ledger.Seed(p1, 5)
		ledger.Seed(p2, 5)

		svc := newTestService(new(MockRepository), cat, ledger, new(MockAggregator))

		_, err := svc.CreateOrder(ctx, CreateOrderInput{
			BuyerID: buyerID,
			Items: []ItemInput{
				{ProductID: p1, Quantity: 1},
				{ProductID: p2, Quantity: 1},
			},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})

		assert.ErrorIs(t, err, ErrMultiSellerCart)
		// rejected before any reservation
		assert.Equal(t, 5, ledger.Available(p1))
		assert.Equal(t, 5, ledger.Available(p2))
	})

	t.Run("InsufficientStockRollsBackEarlierReservations", func(t *testing.T) {
		cat := new(MockCatalog)
		p1 := uuid.New()
		p2 := uuid.New()
		cat.On("GetProduct", ctx, p1).Return(activeSnapshot(p1, sellerID, 1000, 10), nil)
		cat.On("GetProduct", ctx, p2).Return(activeSnapshot(p2, sellerID, 1000, 1), nil)

		ledger := inventory.NewMemoryLedger()
		ledger.Seed(p1, 10)
		ledger.Seed(p2, 1)

		repo := new(MockRepository)
		svc := newTestService(repo, cat, ledger, new(MockAggregator))

		_, err := svc.CreateOrder(ctx, CreateOrderInput{
			BuyerID: buyerID,
			Items: []ItemInput{
				{ProductID: p1, Quantity: 4},
				{ProductID: p2, Quantity: 2}, // only 1 available
			},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})

		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
		// earlier reservation compensated, nothing left standing
		assert.Equal(t, 10, ledger.Available(p1))
		assert.Equal(t, 1, ledger.Available(p2))
		repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("StorageErrorReleasesReservations", func(t *testing.T) {
		cat := new(MockCatalog)
		p1 := uuid.New()
		cat.On("GetProduct", ctx, p1).Return(activeSnapshot(p1, sellerID, 1000, 10), nil)

		ledger := inventory.NewMemoryLedger()
		ledger.Seed(p1, 10)

		repo := new(MockRepository)
		repo.On("CreateOrder", ctx, mock.Anything).Return(errors.New("db write failed"))

		svc := newTestService(repo, cat, ledger, new(MockAggregator))

		_, err := svc.CreateOrder(ctx, CreateOrderInput{
			BuyerID:       buyerID,
			Items:         []ItemInput{{ProductID: p1, Quantity: 3}},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})

		assert.Error(t, err)
		assert.Equal(t, 10, ledger.Available(p1))
	})

	t.Run("DeadRequestContextStillReleasesReservations", func(t *testing.T) {
		reqCtx, cancel := context.WithCancel(context.Background())

		cat := new(MockCatalog)
		p1 := uuid.New()
		cat.On("GetProduct", reqCtx, p1).Return(activeSnapshot(p1, sellerID, 1000, 10), nil)

		ledger := &deadlineLedger{MemoryLedger: inventory.NewMemoryLedger()}
		ledger.Seed(p1, 10)

		// the client disconnects while the order is being persisted
		repo := new(MockRepository)
		repo.On("CreateOrder", reqCtx, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(context.Canceled)

		svc := newTestService(repo, cat, ledger, new(MockAggregator))

		_, err := svc.CreateOrder(reqCtx, CreateOrderInput{
			BuyerID:       buyerID,
			Items:         []ItemInput{{ProductID: p1, Quantity: 3}},
			Delivery:      deliveryInput(),
			PaymentMethod: PaymentPaystack,
		})

		assert.ErrorIs(t, err, context.Canceled)
		// compensation ran on a detached context, not the dead request one
		assert.Equal(t, 10, ledger.Available(p1))
	})
}

// deadlineLedger refuses work once its context is done, the way a
// database-backed ledger does.
type deadlineLedger struct {
	*inventory.MemoryLedger
}

func (l *deadlineLedger) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.MemoryLedger.Reserve(ctx, productID, qty)
}

func (l *deadlineLedger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.MemoryLedger.Release(ctx, productID, qty)
}

// --- TransitionOrder ---

func pendingOrder(orderID, buyerID, sellerID uuid.UUID, items ...LineItem) *Order {
	return &Order{
		ID:       orderID,
		Number:   "FMD-20260901-100000-001-0001",
		BuyerID:  buyerID,
		SellerID: sellerID,
		Items:    items,
		Status:   StatusPending,
	}
}

func TestService_TransitionOrder(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()
	seller := Actor{ID: sellerID, Role: RoleSeller}

	t.Run("SellerConfirms", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		confirmed := *o
		confirmed.Status = StatusConfirmed

		repo.On("GetOrder", ctx, orderID).Return(o, nil).Once()
		repo.On("UpdateStatus", ctx, orderID, StatusPending, StatusConfirmed, mock.AnythingOfType("order.TimelineEntry"), []LineItem(nil)).Return(nil)
		repo.On("GetOrder", ctx, orderID).Return(&confirmed, nil).Once()

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		got, err := svc.TransitionOrder(ctx, orderID, seller, StatusConfirmed, "got it")
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("ShippedBackToPendingRejected", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		o.Status = StatusShipped
		repo.On("GetOrder", ctx, orderID).Return(o, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		admin := Actor{ID: uuid.New(), Role: RoleAdmin}
		_, err := svc.TransitionOrder(ctx, orderID, admin, StatusPending, "")

		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, StatusShipped, invalid.From)
		assert.Equal(t, StatusPending, invalid.To)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PolicyDeniesBuyerConfirm", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetOrder", ctx, orderID).Return(pendingOrder(orderID, buyerID, sellerID), nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		buyer := Actor{ID: buyerID, Role: RoleBuyer}
		_, err := svc.TransitionOrder(ctx, orderID, buyer, StatusConfirmed, "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("CancelRestocksInStatusWrite", func(t *testing.T) {
		p1 := uuid.New()
		items := []LineItem{{ProductID: p1, Quantity: 3, UnitPrice: 1000, Subtotal: 3000}}

		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID, items...)
		o.Status = StatusConfirmed
		cancelled := *o
		cancelled.Status = StatusCancelled

		repo.On("GetOrder", ctx, orderID).Return(o, nil).Once()
		// the full item list rides the conditional status write, so the
		// restock commits or rolls back with the cancellation
		repo.On("UpdateStatus", ctx, orderID, StatusConfirmed, StatusCancelled, mock.AnythingOfType("order.TimelineEntry"), items).Return(nil).Once()
		repo.On("GetOrder", ctx, orderID).Return(&cancelled, nil).Once()

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		got, err := svc.TransitionOrder(ctx, orderID, seller, StatusCancelled, "out of stock")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("CancelRestockFailureLeavesOrderUncancelled", func(t *testing.T) {
		p1 := uuid.New()
		items := []LineItem{{ProductID: p1, Quantity: 3, UnitPrice: 1000, Subtotal: 3000}}

		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID, items...)
		o.Status = StatusConfirmed

		repo.On("GetOrder", ctx, orderID).Return(o, nil).Once()
		repo.On("UpdateStatus", ctx, orderID, StatusConfirmed, StatusCancelled, mock.Anything, items).Return(inventory.ErrUnknownProduct).Once()

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.TransitionOrder(ctx, orderID, seller, StatusCancelled, "out of stock")
		assert.ErrorIs(t, err, inventory.ErrUnknownProduct)

		// the transition rolled back with the restock, so a retry is still
		// a legal confirmed -> cancelled request
		repo.On("GetOrder", ctx, orderID).Return(o, nil).Once()
		repo.On("UpdateStatus", ctx, orderID, StatusConfirmed, StatusCancelled, mock.Anything, items).Return(nil).Once()
		cancelled := *o
		cancelled.Status = StatusCancelled
		repo.On("GetOrder", ctx, orderID).Return(&cancelled, nil).Once()

		got, err := svc.TransitionOrder(ctx, orderID, seller, StatusCancelled, "out of stock")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	t.Run("ConcurrentWriterWinsConflict", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetOrder", ctx, orderID).Return(pendingOrder(orderID, buyerID, sellerID), nil)
		repo.On("UpdateStatus", ctx, orderID, StatusPending, StatusConfirmed, mock.Anything, []LineItem(nil)).Return(ErrOrderConflict)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.TransitionOrder(ctx, orderID, seller, StatusConfirmed, "")
		assert.ErrorIs(t, err, ErrOrderConflict)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetOrder", ctx, orderID).Return(nil, ErrOrderNotFound)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.TransitionOrder(ctx, orderID, seller, StatusConfirmed, "")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

// --- RateOrder ---

func TestService_RateOrder(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	validRating := Rating{Quality: 5, Delivery: 4, Communication: 5, Overall: 5, Review: "Great produce"}

	deliveredOrder := func() *Order {
		o := pendingOrder(orderID, buyerID, sellerID)
		o.Status = StatusDelivered
		return o
	}

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		scores := new(MockAggregator)

		o := deliveredOrder()
		rated := *o
		r := validRating
		rated.Rating = &r

		repo.On("GetOrder", ctx, orderID).Return(o, nil).Once()
		repo.On("AttachRating", ctx, orderID, validRating).Return(nil).Once()
		scores.On("Recompute", ctx, sellerID).Return(&reputation.Score{SellerID: sellerID, Average: 5, RatedOrders: 1}, nil).Once()
		repo.On("GetOrder", ctx, orderID).Return(&rated, nil).Once()

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), scores)

		got, err := svc.RateOrder(ctx, orderID, buyerID, validRating)
		require.NoError(t, err)
		require.NotNil(t, got.Rating)
		assert.Equal(t, 5, got.Rating.Overall)

		scores.AssertNumberOfCalls(t, "Recompute", 1)
	})

	t.Run("SecondRatingRejected", func(t *testing.T) {
		repo := new(MockRepository)
		scores := new(MockAggregator)

		o := deliveredOrder()
		r := validRating
		o.Rating = &r

		repo.On("GetOrder", ctx, orderID).Return(o, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), scores)

		_, err := svc.RateOrder(ctx, orderID, buyerID, validRating)
		assert.ErrorIs(t, err, ErrAlreadyRated)
		scores.AssertNotCalled(t, "Recompute", mock.Anything, mock.Anything)
	})

	t.Run("RacingDuplicateLosesAtRepository", func(t *testing.T) {
		repo := new(MockRepository)
		scores := new(MockAggregator)

		repo.On("GetOrder", ctx, orderID).Return(deliveredOrder(), nil)
		repo.On("AttachRating", ctx, orderID, validRating).Return(ErrAlreadyRated)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), scores)

		_, err := svc.RateOrder(ctx, orderID, buyerID, validRating)
		assert.ErrorIs(t, err, ErrAlreadyRated)
		scores.AssertNotCalled(t, "Recompute", mock.Anything, mock.Anything)
	})

	t.Run("NotBuyer", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetOrder", ctx, orderID).Return(deliveredOrder(), nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.RateOrder(ctx, orderID, uuid.New(), validRating)
		assert.ErrorIs(t, err, ErrNotBuyer)
	})

	t.Run("NotDelivered", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		o.Status = StatusShipped
		repo.On("GetOrder", ctx, orderID).Return(o, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.RateOrder(ctx, orderID, buyerID, validRating)
		assert.ErrorIs(t, err, ErrOrderNotDelivered)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		svc := newTestService(new(MockRepository), new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.RateOrder(ctx, orderID, buyerID, Rating{Quality: 0, Delivery: 3, Communication: 3, Overall: 3})
		assert.ErrorIs(t, err, ErrInvalidRating)

		_, err = svc.RateOrder(ctx, orderID, buyerID, Rating{Quality: 5, Delivery: 5, Communication: 5, Overall: 6})
		assert.ErrorIs(t, err, ErrInvalidRating)
	})
}

// --- GetOrder / ListOrders ---

func TestService_GetOrder(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	repo := new(MockRepository)
	repo.On("GetOrder", ctx, orderID).Return(pendingOrder(orderID, buyerID, sellerID), nil)

	svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

	t.Run("BuyerSeesOwnOrder", func(t *testing.T) {
		o, err := svc.GetOrder(ctx, orderID, Actor{ID: buyerID, Role: RoleBuyer})
		require.NoError(t, err)
		assert.Equal(t, orderID, o.ID)
	})

	t.Run("SellerSeesOwnOrder", func(t *testing.T) {
		_, err := svc.GetOrder(ctx, orderID, Actor{ID: sellerID, Role: RoleSeller})
		assert.NoError(t, err)
	})

	t.Run("AdminSeesAnyOrder", func(t *testing.T) {
		_, err := svc.GetOrder(ctx, orderID, Actor{ID: uuid.New(), Role: RoleAdmin})
		assert.NoError(t, err)
	})

	t.Run("StrangerDenied", func(t *testing.T) {
		_, err := svc.GetOrder(ctx, orderID, Actor{ID: uuid.New(), Role: RoleBuyer})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestService_ListOrders(t *testing.T) {
	ctx := context.Background()
	buyerID := uuid.New()

	t.Run("BuyerScopedWithDefaults", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ListOrders", ctx, mock.MatchedBy(func(scope ListScope) bool {
			return scope.BuyerID != nil && *scope.BuyerID == buyerID && scope.SellerID == nil
		}), (*Filter)(nil), int32(20), int32(0)).Return([]*Order{}, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.ListOrders(ctx, Actor{ID: buyerID, Role: RoleBuyer}, nil, nil, nil)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("LimitCapped", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ListOrders", ctx, mock.Anything, (*Filter)(nil), int32(100), int32(100)).Return([]*Order{}, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		limit := int32(500)
		page := int32(2)
		_, err := svc.ListOrders(ctx, Actor{ID: uuid.New(), Role: RoleAdmin}, nil, &limit, &page)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		svc := newTestService(new(MockRepository), new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.ListOrders(ctx, Actor{ID: uuid.New(), Role: Role("guest")}, nil, nil, nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

// --- Payment callbacks ---

func TestService_PaymentCallbacks(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()
	number := "FMD-20260901-100000-001-0001"
	paidAt := time.Now().UTC()

	t.Run("MarkPaid", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		repo.On("GetOrderByNumber", ctx, number).Return(o, nil)
		repo.On("UpdatePayment", ctx, orderID, PaymentStatusPaid, "txn-1", &paidAt).Return(nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		require.NoError(t, svc.MarkPaymentPaid(ctx, number, "txn-1", paidAt))
		repo.AssertExpectations(t)
	})

	t.Run("MarkPaidIdempotent", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		o.Payment.Status = PaymentStatusPaid
		repo.On("GetOrderByNumber", ctx, number).Return(o, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		require.NoError(t, svc.MarkPaymentPaid(ctx, number, "txn-2", paidAt))
		repo.AssertNotCalled(t, "UpdatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FailedIgnoredWhenPaid", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		o.Payment.Status = PaymentStatusPaid
		repo.On("GetOrderByNumber", ctx, number).Return(o, nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		require.NoError(t, svc.MarkPaymentFailed(ctx, number))
		repo.AssertNotCalled(t, "UpdatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MarkFailed", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		repo.On("GetOrderByNumber", ctx, number).Return(o, nil)
		repo.On("UpdatePayment", ctx, orderID, PaymentStatusFailed, "", (*time.Time)(nil)).Return(nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		require.NoError(t, svc.MarkPaymentFailed(ctx, number))
		repo.AssertExpectations(t)
	})
}

// --- Delivery sub-status ---

func TestService_UpdateDeliveryStatus(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	t.Run("SellerUpdates", func(t *testing.T) {
		repo := new(MockRepository)
		o := pendingOrder(orderID, buyerID, sellerID)
		updated := *o
		updated.Delivery.Status = DeliveryInTransit
		updated.Delivery.TrackingNumber = "TRK-9"

		repo.On("GetOrder", ctx, orderID).Return(o, nil).Once()
		repo.On("UpdateDeliveryStatus", ctx, orderID, DeliveryInTransit, "TRK-9").Return(nil)
		repo.On("GetOrder", ctx, orderID).Return(&updated, nil).Once()

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		got, err := svc.UpdateDeliveryStatus(ctx, orderID, Actor{ID: sellerID, Role: RoleSeller}, DeliveryInTransit, "TRK-9")
		require.NoError(t, err)
		assert.Equal(t, DeliveryInTransit, got.Delivery.Status)
	})

	t.Run("BuyerDenied", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetOrder", ctx, orderID).Return(pendingOrder(orderID, buyerID, sellerID), nil)

		svc := newTestService(repo, new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.UpdateDeliveryStatus(ctx, orderID, Actor{ID: buyerID, Role: RoleBuyer}, DeliveryInTransit, "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		svc := newTestService(new(MockRepository), new(MockCatalog), inventory.NewMemoryLedger(), new(MockAggregator))

		_, err := svc.UpdateDeliveryStatus(ctx, orderID, Actor{ID: sellerID, Role: RoleSeller}, DeliveryStatus("lost"), "")
		assert.ErrorIs(t, err, ErrInvalidDeliveryStatus)
	})
}
