package analytics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopledger/shopledger/internal/stock"
)

// Repository reads the product stock projection from PostgreSQL. Sales
// volumes come from the stock repository, which owns the adjustment log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockStatus returns current stock and threshold for one product.
func (r *Repository) StockStatus(ctx context.Context, productID int64) (StockStatus, error) {
	var status StockStatus
	err := r.pool.QueryRow(ctx, `SELECT current_stock, low_stock_threshold FROM products WHERE id = $1`, productID).
		Scan(&status.CurrentStock, &status.LowStockThreshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockStatus{}, stock.ErrProductNotFound
		}
		return StockStatus{}, err
	}
	return status, nil
}
