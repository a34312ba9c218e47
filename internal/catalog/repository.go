package catalog

import (
	"context"
	"database/sql"
	"errors"

	"farmlink-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reader exposes the current catalog state of a product. Read-only: the
// catalog subsystem owns writes, the order engine only snapshots.
type Reader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*Snapshot, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Reader {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, productID uuid.UUID) (*Snapshot, error) {
	query := `
		SELECT id, name, unit, price, currency, available_qty, min_order_qty, seller_id, status
		FROM products
		WHERE id = $1
	`

	var s Snapshot
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&s.ProductID,
		&s.Name,
		&s.Unit,
		&s.Price,
		&s.Currency,
		&s.AvailableQty,
		&s.MinOrderQty,
		&s.SellerID,
		&s.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query product snapshot",
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	return &s, nil
}
