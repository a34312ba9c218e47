package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"farmlink-be/internal/inventory"
	"farmlink-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListScope restricts a listing to one side of the marketplace. Both nil
// means admin: no restriction.
type ListScope struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
}

type Filter struct {
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
}

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	ListOrders(ctx context.Context, scope ListScope, filter *Filter, limit, offset int32) ([]*Order, error)

	// UpdateStatus commits a fulfillment transition: the status write is
	// conditional on the expected current status, and exactly one timeline
	// entry is appended in the same transaction. Zero rows matched means a
	// concurrent writer won; the caller reloads and retries. A non-empty
	// restock returns the listed quantities to stock inside the same
	// transaction, so a cancelled order and its restock commit or roll back
	// together.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to Status, entry TimelineEntry, restock []LineItem) error

	// AttachRating is conditional on the order being delivered and unrated,
	// so a racing duplicate loses at the database.
	AttachRating(ctx context.Context, orderID uuid.UUID, r Rating) error

	UpdatePayment(ctx context.Context, orderID uuid.UUID, status PaymentState, txnID string, paidAt *time.Time) error
	UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status DeliveryStatus, tracking string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.Number),
		zap.Int("item_count", len(o.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, number, buyer_id, seller_id,
			subtotal, delivery_fee, service_fee, tax, total, currency,
			delivery_method, delivery_address, delivery_scheduled_date,
			delivery_scheduled_time, delivery_status, delivery_tracking,
			payment_method, payment_status,
			status, notes, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,$10,
			$11,$12,$13,
			$14,$15,$16,
			$17,$18,
			$19,$20,$21,$21
		)
	`,
		o.ID, o.Number, o.BuyerID, o.SellerID,
		o.Pricing.Subtotal, o.Pricing.DeliveryFee, o.Pricing.ServiceFee,
		o.Pricing.Tax, o.Pricing.Total, o.Pricing.Currency,
		o.Delivery.Method, o.Delivery.Address, o.Delivery.ScheduledDate,
		o.Delivery.ScheduledTime, o.Delivery.Status, o.Delivery.TrackingNumber,
		o.Payment.Method, o.Payment.Status,
		o.Status, o.Notes, o.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, name, quantity, unit_price, unit, subtotal
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			o.ID, item.ProductID, item.Name, item.Quantity,
			item.UnitPrice, item.Unit, item.Subtotal,
		)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Int("item_index", i),
				zap.String("product_id", item.ProductID.String()),
				zap.Error(err),
			)
			return err
		}
	}

	for _, entry := range o.Timeline {
		if err := insertTimelineEntry(ctx, tx, o.ID, entry); err != nil {
			log.Error("failed to insert timeline entry", zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order created")

	return nil
}

func insertTimelineEntry(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, entry TimelineEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_timeline (order_id, status, note, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, orderID, entry.Status, entry.Note, entry.ActorID, entry.Timestamp)
	return err
}

func (r *repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return r.getOrder(ctx, "id = $1", orderID)
}

func (r *repository) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOrder(ctx, "number = $1", number)
}

func (r *repository) getOrder(ctx context.Context, where string, arg any) (*Order, error) {
	query := fmt.Sprintf(`
		SELECT
			id, number, buyer_id, seller_id,
			subtotal, delivery_fee, service_fee, tax, total, currency,
			delivery_method, delivery_address, delivery_scheduled_date,
			delivery_scheduled_time, delivery_status, delivery_tracking,
			payment_method, payment_status, payment_txn_id, payment_paid_at,
			status, notes,
			rating_quality, rating_delivery, rating_communication, rating_overall, rating_review,
			created_at, updated_at
		FROM orders
		WHERE %s
	`, where)

	var (
		o             Order
		txnID         sql.NullString
		paidAt        sql.NullTime
		ratingQuality sql.NullInt64
		ratingDeliv   sql.NullInt64
		ratingComm    sql.NullInt64
		ratingOverall sql.NullInt64
		ratingReview  sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.Number, &o.BuyerID, &o.SellerID,
		&o.Pricing.Subtotal, &o.Pricing.DeliveryFee, &o.Pricing.ServiceFee,
		&o.Pricing.Tax, &o.Pricing.Total, &o.Pricing.Currency,
		&o.Delivery.Method, &o.Delivery.Address, &o.Delivery.ScheduledDate,
		&o.Delivery.ScheduledTime, &o.Delivery.Status, &o.Delivery.TrackingNumber,
		&o.Payment.Method, &o.Payment.Status, &txnID, &paidAt,
		&o.Status, &o.Notes,
		&ratingQuality, &ratingDeliv, &ratingComm, &ratingOverall, &ratingReview,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	o.Payment.TransactionID = txnID.String
	if paidAt.Valid {
		t := paidAt.Time
		o.Payment.PaidAt = &t
	}
	if ratingOverall.Valid {
		o.Rating = &Rating{
			Quality:       int(ratingQuality.Int64),
			Delivery:      int(ratingDeliv.Int64),
			Communication: int(ratingComm.Int64),
			Overall:       int(ratingOverall.Int64),
			Review:        ratingReview.String,
		}
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadTimeline(ctx, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, quantity, unit_price, unit, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item LineItem
		if err := rows.Scan(
			&item.ProductID, &item.Name, &item.Quantity,
			&item.UnitPrice, &item.Unit, &item.Subtotal,
		); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}

	return rows.Err()
}

func (r *repository) loadTimeline(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, note, actor_id, created_at
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var entry TimelineEntry
		if err := rows.Scan(&entry.Status, &entry.Note, &entry.ActorID, &entry.Timestamp); err != nil {
			return err
		}
		o.Timeline = append(o.Timeline, entry)
	}

	return rows.Err()
}

func (r *repository) ListOrders(
	ctx context.Context,
	scope ListScope,
	filter *Filter,
	limit, offset int32,
) ([]*Order, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrders"),
		zap.Int32("limit", limit),
		zap.Int32("offset", offset),
	)

	query := `
		SELECT
			id, number, buyer_id, seller_id, total, currency, status,
			created_at, updated_at
		FROM orders
		WHERE 1=1
	`

	args := []any{}
	argIndex := 1

	if scope.BuyerID != nil {
		query += fmt.Sprintf(" AND buyer_id = $%d", argIndex)
		args = append(args, *scope.BuyerID)
		argIndex++
	}
	if scope.SellerID != nil {
		query += fmt.Sprintf(" AND seller_id = $%d", argIndex)
		args = append(args, *scope.SellerID)
		argIndex++
	}

	if filter != nil {
		if filter.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argIndex)
			args = append(args, *filter.Status)
			argIndex++
		}
		if filter.DateFrom != nil {
			query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
			args = append(args, *filter.DateFrom)
			argIndex++
		}
		if filter.DateTo != nil {
			query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
			args = append(args, *filter.DateTo)
			argIndex++
		}
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.Number, &o.BuyerID, &o.SellerID,
			&o.Pricing.Total, &o.Pricing.Currency, &o.Status,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("orders listed", zap.Int("count", len(orders)))

	return orders, nil
}

func (r *repository) UpdateStatus(
	ctx context.Context,
	orderID uuid.UUID,
	from, to Status,
	entry TimelineEntry,
	restock []LineItem,
) error {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateStatus"),
		zap.String("order_id", orderID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, orderID, from)
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		log.Warn("status write lost to concurrent update")
		return ErrOrderConflict
	}

	if err := insertTimelineEntry(ctx, tx, orderID, entry); err != nil {
		log.Error("failed to append timeline entry", zap.Error(err))
		return err
	}

	for _, item := range restock {
		if err := inventory.ReleaseTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			log.Error("failed to restock item, rolling back transition",
				zap.String("product_id", item.ProductID.String()),
				zap.Int("qty", item.Quantity),
				zap.Error(err),
			)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit status transaction", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order status updated")

	return nil
}

func (r *repository) AttachRating(ctx context.Context, orderID uuid.UUID, rating Rating) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET rating_quality = $1,
		    rating_delivery = $2,
		    rating_communication = $3,
		    rating_overall = $4,
		    rating_review = $5,
		    updated_at = NOW()
		WHERE id = $6
		  AND status = 'delivered'
		  AND rating_overall IS NULL
	`,
		rating.Quality, rating.Delivery, rating.Communication,
		rating.Overall, rating.Review, orderID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.ratingRejection(ctx, orderID)
	}

	return nil
}

// ratingRejection names why a conditional rating write matched nothing. All
// three guards live in the WHERE clause, so a zero-row result alone cannot
// tell them apart.
func (r *repository) ratingRejection(ctx context.Context, orderID uuid.UUID) error {
	var (
		status  Status
		overall sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT status, rating_overall FROM orders WHERE id = $1
	`, orderID).Scan(&status, &overall)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if overall.Valid {
		return ErrAlreadyRated
	}
	return ErrOrderNotDelivered
}

func (r *repository) UpdatePayment(
	ctx context.Context,
	orderID uuid.UUID,
	status PaymentState,
	txnID string,
	paidAt *time.Time,
) error {

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
		    payment_txn_id = $2,
		    payment_paid_at = $3,
		    updated_at = NOW()
		WHERE id = $4
	`, status, txnID, paidAt, orderID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *repository) UpdateDeliveryStatus(
	ctx context.Context,
	orderID uuid.UUID,
	status DeliveryStatus,
	tracking string,
) error {

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET delivery_status = $1,
		    delivery_tracking = $2,
		    updated_at = NOW()
		WHERE id = $3
	`, status, tracking, orderID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}
