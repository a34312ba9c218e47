package inventory

import (
	"context"
	"database/sql"

	"farmlink-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresLedger keeps the per-product counter in the products table. The
// conditional UPDATE is the single point of mutual exclusion for concurrent
// reservations; no lock is held outside the statement.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "ledger"),
		zap.String("product_id", productID.String()),
		zap.Int("qty", qty),
	)

	res, err := l.db.ExecContext(ctx, `
		UPDATE products
		SET available_qty = available_qty - $2
		WHERE id = $1 AND available_qty >= $2
	`, productID, qty)
	if err != nil {
		log.Error("reserve failed", zap.Error(err))
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		log.Warn("insufficient stock")
		return ErrInsufficientStock
	}

	log.Debug("stock reserved")
	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "ledger"),
		zap.String("product_id", productID.String()),
		zap.Int("qty", qty),
	)

	if err := ReleaseTx(ctx, l.db, productID, qty); err != nil {
		log.Error("release failed", zap.Error(err))
		return err
	}

	log.Debug("stock released")
	return nil
}

// Execer is the slice of database/sql shared by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReleaseTx returns stock through a caller-owned execer, so a restock can
// ride inside another package's transaction and roll back with it.
func ReleaseTx(ctx context.Context, ex Execer, productID uuid.UUID, qty int) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE products
		SET available_qty = available_qty + $2
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnknownProduct
	}

	return nil
}
