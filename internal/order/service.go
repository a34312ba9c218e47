package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmlink-be/internal/catalog"
	"farmlink-be/internal/inventory"
	"farmlink-be/internal/logger"
	"farmlink-be/internal/metrics"
	"farmlink-be/internal/pricing"
	"farmlink-be/internal/reputation"
	"farmlink-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type DeliveryInput struct {
	Method        pricing.DeliveryMethod
	Address       string
	ScheduledDate time.Time
	ScheduledTime string
}

type CreateOrderInput struct {
	BuyerID       uuid.UUID
	Items         []ItemInput
	Delivery      DeliveryInput
	PaymentMethod PaymentMethod
	Notes         string
}

// TransitionPolicy decides whether an actor may request a transition. It is
// supplied by the caller layer; the state machine itself stays actor-agnostic.
type TransitionPolicy func(actor Actor, o *Order, next Status) error

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	TransitionOrder(ctx context.Context, orderID uuid.UUID, actor Actor, next Status, note string) (*Order, error)
	RateOrder(ctx context.Context, orderID uuid.UUID, buyerID uuid.UUID, rating Rating) (*Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*Order, error)
	ListOrders(ctx context.Context, actor Actor, filter *Filter, limit, page *int32) ([]*Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, actor Actor, status DeliveryStatus, tracking string) (*Order, error)
	MarkPaymentPaid(ctx context.Context, orderNumber, txnID string, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, orderNumber string) error
}

type service struct {
	repo    Repository
	catalog catalog.Reader
	ledger  inventory.Ledger
	scores  reputation.Aggregator
	policy  TransitionPolicy
	fees    pricing.Params
	stats   *metrics.Registry
}

func NewService(
	repo Repository,
	catalogReader catalog.Reader,
	ledger inventory.Ledger,
	scores reputation.Aggregator,
	policy TransitionPolicy,
	fees pricing.Params,
	stats *metrics.Registry,
) Service {
	if stats == nil {
		stats = &metrics.Registry{}
	}
	return &service{
		repo:    repo,
		catalog: catalogReader,
		ledger:  ledger,
		scores:  scores,
		policy:  policy,
		fees:    fees,
		stats:   stats,
	}
}

// reservation tracks a successful ledger decrement so it can be compensated
// if a later step fails.
type reservation struct {
	productID uuid.UUID
	qty       int
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.String("buyer_id", input.BuyerID.String()),
		zap.Int("item_count", len(input.Items)),
	)

	if err := validateCreateInput(input); err != nil {
		log.Warn("invalid create order input", zap.Error(err))
		return nil, err
	}

	// 1. Resolve price/seller snapshots. No mutation yet.
	items := make([]LineItem, 0, len(input.Items))
	var sellerID uuid.UUID

	for i, in := range input.Items {
		snap, err := s.catalog.GetProduct(ctx, in.ProductID)
		if err != nil {
			log.Warn("failed to resolve product",
				zap.Int("index", i),
				zap.String("product_id", in.ProductID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		if !snap.Orderable() {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, snap.Name)
		}

		// 2. All line items must resolve to a single seller.
		if i == 0 {
			sellerID = snap.SellerID
		} else if snap.SellerID != sellerID {
			return nil, ErrMultiSellerCart
		}

		items = append(items, LineItem{
			ProductID: snap.ProductID,
			Name:      snap.Name,
			Quantity:  in.Quantity,
			UnitPrice: snap.Price,
			Unit:      snap.Unit,
			Subtotal:  snap.Price * int64(in.Quantity),
		})
	}

	// 3. Reserve stock in line-item order. The first failure releases every
	// earlier reservation: partial reservations never survive this call.
	reserved := make([]reservation, 0, len(items))
	for _, item := range items {
		if err := s.ledger.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				s.stats.StockConflicts.Inc()
			}
			log.Warn("stock reservation failed",
				zap.String("product_id", item.ProductID.String()),
				zap.Error(err),
			)
			s.releaseAll(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, reservation{productID: item.ProductID, qty: item.Quantity})
	}

	// 4. Price the order. Pure computation, snapshot prices only.
	priceItems := make([]pricing.Item, len(items))
	for i, item := range items {
		priceItems[i] = pricing.Item{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	breakdown := pricing.Quote(priceItems, input.Delivery.Method, s.fees)

	now := time.Now().UTC()
	o := &Order{
		ID:       uuid.New(),
		Number:   utils.GenerateOrderNumber(),
		BuyerID:  input.BuyerID,
		SellerID: sellerID,
		Items:    items,
		Pricing:  breakdown,
		Delivery: Delivery{
			Method:        input.Delivery.Method,
			Address:       input.Delivery.Address,
			ScheduledDate: input.Delivery.ScheduledDate,
			ScheduledTime: input.Delivery.ScheduledTime,
			Status:        DeliveryPending,
		},
		Payment: PaymentInfo{
			Method: input.PaymentMethod,
			Status: PaymentStatusPending,
		},
		Status: StatusPending,
		Notes:  input.Notes,
		Timeline: []TimelineEntry{{
			Status:    StatusPending,
			Timestamp: now,
			ActorID:   input.BuyerID,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 5. Persist. A failed write must not leave stock decremented.
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		log.Error("failed to persist order, releasing reservations", zap.Error(err))
		s.releaseAll(ctx, reserved)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.stats.OrdersCreated.Inc()
	log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.Number),
		zap.Int64("total", o.Pricing.Total),
	)

	return o, nil
}

func validateCreateInput(input CreateOrderInput) error {
	if len(input.Items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	if !input.Delivery.Method.Valid() {
		return ErrInvalidDeliveryMethod
	}
	if input.Delivery.Method == pricing.MethodDelivery && input.Delivery.Address == "" {
		return ErrAddressRequired
	}
	if !input.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if len(input.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	return nil
}

// releaseAll compensates reservations in reverse order. It must keep working
// when the request context itself is what failed, so cancellation and
// deadline are stripped before the releases run. A release failure is not
// recoverable here; it is logged for reconciliation.
func (s *service) releaseAll(ctx context.Context, reserved []reservation) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromCtx(ctx)
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if err := s.ledger.Release(ctx, r.productID, r.qty); err != nil {
			log.Error("CRITICAL: failed to release reservation",
				zap.String("product_id", r.productID.String()),
				zap.Int("qty", r.qty),
				zap.Error(err),
			)
		}
	}
}

func (s *service) TransitionOrder(
	ctx context.Context,
	orderID uuid.UUID,
	actor Actor,
	next Status,
	note string,
) (*Order, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "TransitionOrder"),
		zap.String("order_id", orderID.String()),
		zap.String("next", string(next)),
		zap.String("actor_role", string(actor.Role)),
	)

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.policy != nil {
		if err := s.policy(actor, o, next); err != nil {
			log.Warn("transition denied by policy", zap.Error(err))
			return nil, err
		}
	}

	if err := ValidateTransition(o.Status, next); err != nil {
		log.Warn("illegal transition", zap.Error(err))
		return nil, err
	}

	entry := TimelineEntry{
		Status:    next,
		Timestamp: time.Now().UTC(),
		Note:      note,
		ActorID:   actor.ID,
	}

	// A cancellation returns the reserved stock inside the status
	// transaction: the order never commits as cancelled with the
	// quantities still decremented.
	var restock []LineItem
	if next == StatusCancelled {
		restock = o.Items
	}

	// Conditional on the loaded status: of two racing writers exactly one
	// commits, the other gets ErrOrderConflict and retries.
	if err := s.repo.UpdateStatus(ctx, orderID, o.Status, next, entry, restock); err != nil {
		return nil, err
	}

	if next == StatusCancelled {
		s.stats.OrdersCancelled.Inc()
	}

	log.Info("order transitioned", zap.String("from", string(o.Status)))

	return s.repo.GetOrder(ctx, orderID)
}

func (s *service) RateOrder(
	ctx context.Context,
	orderID uuid.UUID,
	buyerID uuid.UUID,
	rating Rating,
) (*Order, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RateOrder"),
		zap.String("order_id", orderID.String()),
	)

	if err := rating.Validate(); err != nil {
		return nil, err
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if o.Status != StatusDelivered {
		return nil, ErrOrderNotDelivered
	}
	if o.Rating != nil {
		return nil, ErrAlreadyRated
	}

	// Conditional write: a concurrent duplicate loses here even after the
	// checks above passed on a stale read.
	if err := s.repo.AttachRating(ctx, orderID, rating); err != nil {
		return nil, err
	}

	if _, err := s.scores.Recompute(ctx, o.SellerID); err != nil {
		log.Error("failed to recompute seller score", zap.Error(err))
		return nil, fmt.Errorf("rating saved but score recompute failed: %w", err)
	}

	s.stats.OrdersRated.Inc()
	log.Info("order rated",
		zap.String("seller_id", o.SellerID.String()),
		zap.Int("overall", rating.Overall),
	)

	return s.repo.GetOrder(ctx, orderID)
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != RoleAdmin && o.BuyerID != actor.ID && o.SellerID != actor.ID {
		return nil, ErrUnauthorized
	}

	return o, nil
}

func (s *service) ListOrders(
	ctx context.Context,
	actor Actor,
	filter *Filter,
	limit, page *int32,
) ([]*Order, error) {

	finalLimit := int32(20)
	finalPage := int32(1)

	if limit != nil && *limit > 0 {
		finalLimit = *limit
	}
	if page != nil && *page > 0 {
		finalPage = *page
	}
	if finalLimit > 100 {
		finalLimit = 100
	}

	offset := (finalPage - 1) * finalLimit

	var scope ListScope
	switch actor.Role {
	case RoleBuyer:
		id := actor.ID
		scope.BuyerID = &id
	case RoleSeller:
		id := actor.ID
		scope.SellerID = &id
	case RoleAdmin:
		// unrestricted
	default:
		return nil, ErrUnauthorized
	}

	return s.repo.ListOrders(ctx, scope, filter, finalLimit, offset)
}

func (s *service) UpdateDeliveryStatus(
	ctx context.Context,
	orderID uuid.UUID,
	actor Actor,
	status DeliveryStatus,
	tracking string,
) (*Order, error) {

	if !status.Valid() {
		return nil, ErrInvalidDeliveryStatus
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != RoleAdmin && o.SellerID != actor.ID {
		return nil, ErrUnauthorized
	}

	if err := s.repo.UpdateDeliveryStatus(ctx, orderID, status, tracking); err != nil {
		return nil, err
	}

	return s.repo.GetOrder(ctx, orderID)
}

func (s *service) MarkPaymentPaid(ctx context.Context, orderNumber, txnID string, paidAt time.Time) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MarkPaymentPaid"),
		zap.String("order_number", orderNumber),
	)

	o, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	if o.Payment.Status == PaymentStatusPaid {
		log.Info("payment already marked paid, skipping")
		return nil
	}

	if err := s.repo.UpdatePayment(ctx, o.ID, PaymentStatusPaid, txnID, &paidAt); err != nil {
		return err
	}

	log.Info("order marked as paid", zap.String("txn_id", txnID))
	return nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, orderNumber string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MarkPaymentFailed"),
		zap.String("order_number", orderNumber),
	)

	o, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	switch o.Payment.Status {
	case PaymentStatusFailed:
		log.Info("payment already marked failed, skipping")
		return nil
	case PaymentStatusPaid:
		log.Warn("failure event for an already paid order, ignoring")
		return nil
	}

	if err := s.repo.UpdatePayment(ctx, o.ID, PaymentStatusFailed, o.Payment.TransactionID, nil); err != nil {
		return err
	}

	log.Info("order marked as payment failed")
	return nil
}
