package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Ledger is the single primitive through which current_stock changes.
// Every write pairs a conditional counter update with an append-only
// adjustment row inside the caller's transaction, so the reconciliation
// invariant (sum of deltas == current stock) holds on every commit path.
// No other code in the repository issues an UPDATE against current_stock.
type Ledger struct{}

// Apply posts one movement within tx. The counter update is conditional:
// it only succeeds when the resulting stock stays non-negative, which
// serialises concurrent movements on the product row and rejects oversell
// at decrement time rather than at an earlier read.
func (Ledger) Apply(ctx context.Context, tx pgx.Tx, in RecordInput) (PostedAdjustment, error) {
	if in.QuantityChange == 0 {
		return PostedAdjustment{}, ErrInvalidQuantity
	}
	if !in.Reason.Valid() {
		return PostedAdjustment{}, ErrUnknownReason
	}
	effective := in.EffectiveAt
	if effective.IsZero() {
		effective = time.Now().UTC()
	}

	var stockAfter int
	err := tx.QueryRow(ctx, `UPDATE products
SET current_stock = current_stock + $2, updated_at = NOW()
WHERE id = $1 AND current_stock + $2 >= 0
RETURNING current_stock`, in.ProductID, in.QuantityChange).Scan(&stockAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostedAdjustment{}, movementRejection(ctx, tx, in)
		}
		return PostedAdjustment{}, err
	}

	adj := Adjustment{
		ProductID:      in.ProductID,
		ActorID:        in.ActorID,
		QuantityChange: in.QuantityChange,
		Reason:         in.Reason,
		Note:           in.Note,
		EffectiveAt:    effective,
	}
	err = tx.QueryRow(ctx, `INSERT INTO stock_adjustments (product_id, actor_id, quantity_change, reason, note, effective_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id, created_at`,
		adj.ProductID, adj.ActorID, adj.QuantityChange, string(adj.Reason), adj.Note, adj.EffectiveAt).
		Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return PostedAdjustment{}, err
	}
	return PostedAdjustment{Adjustment: adj, StockAfter: stockAfter}, nil
}

// movementRejection distinguishes a missing product from an oversell once
// the conditional update matched no row.
func movementRejection(ctx context.Context, tx pgx.Tx, in RecordInput) error {
	var available int
	err := tx.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1`, in.ProductID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return err
	}
	return &InsufficientStockError{ProductID: in.ProductID, Requested: -in.QuantityChange, Available: available}
}
