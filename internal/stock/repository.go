package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopledger/shopledger/internal/platform/db"
)

// Repository persists the adjustment log and product counters in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	ledger Ledger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record posts one movement in its own transaction.
func (r *Repository) Record(ctx context.Context, in RecordInput) (PostedAdjustment, error) {
	if r == nil {
		return PostedAdjustment{}, errors.New("stock repository not initialised")
	}
	var posted PostedAdjustment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		posted, err = r.ledger.Apply(ctx, tx, in)
		return err
	})
	if err != nil {
		return PostedAdjustment{}, err
	}
	return posted, nil
}

// List returns adjustment log entries, most recent effective date first.
func (r *Repository) List(ctx context.Context, filter AdjustmentFilter) ([]Adjustment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, actor_id, quantity_change, reason, note, effective_at, created_at
FROM stock_adjustments
WHERE ($1 = 0 OR product_id = $1)
  AND effective_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY effective_at DESC, id DESC
LIMIT $4`, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Adjustment{}
	for rows.Next() {
		var adj Adjustment
		var reason string
		if err := rows.Scan(&adj.ID, &adj.ProductID, &adj.ActorID, &adj.QuantityChange, &reason, &adj.Note, &adj.EffectiveAt, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.Reason = Reason(reason)
		entries = append(entries, adj)
	}
	return entries, rows.Err()
}

// SalesVolume sums the units consumed by Sale movements inside the window.
func (r *Repository) SalesVolume(ctx context.Context, productID int64, from, to time.Time) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(-quantity_change), 0)
FROM stock_adjustments
WHERE product_id = $1 AND reason = $2 AND effective_at BETWEEN $3 AND $4`,
		productID, string(ReasonSale), from, to).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Reconcile reads the ledger sum and the counter inside one transaction so
// the comparison is not skewed by concurrent movements.
func (r *Repository) Reconcile(ctx context.Context, productID int64) (ReconcileReport, error) {
	var report ReconcileReport
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		report.ProductID = productID
		if err := tx.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1`, productID).Scan(&report.CurrentStock); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_change), 0) FROM stock_adjustments WHERE product_id = $1`, productID).Scan(&report.LedgerSum); err != nil {
			return err
		}
		report.Consistent = report.LedgerSum == report.CurrentStock
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	return report, nil
}

// ProductIDs lists every product id, used by the reconciliation sweep.
func (r *Repository) ProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
