package reputation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"farmlink-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrScoreNotFound = errors.New("seller score not found")

// Score is the per-seller reputation aggregate, derived solely from
// delivered and rated orders.
type Score struct {
	SellerID    uuid.UUID
	Average     float64
	RatedOrders int
	UpdatedAt   time.Time
}

// Aggregator owns seller reputation scores. Recompute rescans the rated
// orders rather than maintaining a running average, so it stays correct
// under concurrent rating events.
type Aggregator interface {
	Recompute(ctx context.Context, sellerID uuid.UUID) (*Score, error)
	GetScore(ctx context.Context, sellerID uuid.UUID) (*Score, error)
}

type aggregator struct {
	db *sql.DB
}

func NewAggregator(db *sql.DB) Aggregator {
	return &aggregator{db: db}
}

func (a *aggregator) Recompute(ctx context.Context, sellerID uuid.UUID) (*Score, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reputation"),
		zap.String("method", "Recompute"),
		zap.String("seller_id", sellerID.String()),
	)

	score := &Score{SellerID: sellerID}

	err := a.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating_overall), 0), COUNT(*)
		FROM orders
		WHERE seller_id = $1
		  AND status = 'delivered'
		  AND rating_overall IS NOT NULL
	`, sellerID).Scan(&score.Average, &score.RatedOrders)
	if err != nil {
		log.Error("failed to aggregate ratings", zap.Error(err))
		return nil, err
	}

	// Single replace: the score row is never partially updated.
	err = a.db.QueryRowContext(ctx, `
		INSERT INTO seller_scores (seller_id, average_rating, rated_orders, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (seller_id) DO UPDATE
		SET average_rating = EXCLUDED.average_rating,
		    rated_orders   = EXCLUDED.rated_orders,
		    updated_at     = EXCLUDED.updated_at
		RETURNING updated_at
	`, sellerID, score.Average, score.RatedOrders).Scan(&score.UpdatedAt)
	if err != nil {
		log.Error("failed to persist seller score", zap.Error(err))
		return nil, err
	}

	log.Info("seller score recomputed",
		zap.Float64("average", score.Average),
		zap.Int("rated_orders", score.RatedOrders),
	)

	return score, nil
}

func (a *aggregator) GetScore(ctx context.Context, sellerID uuid.UUID) (*Score, error) {
	var s Score
	err := a.db.QueryRowContext(ctx, `
		SELECT seller_id, average_rating, rated_orders, updated_at
		FROM seller_scores
		WHERE seller_id = $1
	`, sellerID).Scan(&s.SellerID, &s.Average, &s.RatedOrders, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}
