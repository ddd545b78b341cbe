package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopledger/shopledger/internal/platform/db"
	"github.com/shopledger/shopledger/internal/stock"
)

const productColumns = `id, sku, name, category_id, cost_price, selling_price, mrp,
	discount_pct, current_stock, low_stock_threshold, created_at, updated_at`

// Repository persists products in PostgreSQL. Initial stock on create goes
// through the stock ledger inside the same transaction as the insert.
type Repository struct {
	pool   *pgxpool.Pool
	ledger stock.Ledger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a product with stock zero, then posts the initial stock
// adjustment so counter and log agree from the first row.
func (r *Repository) Create(ctx context.Context, in CreateInput) (Product, error) {
	var product Product
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO products (sku, name, category_id, cost_price, selling_price, mrp,
				discount_pct, current_stock, low_stock_threshold)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
			RETURNING `+productColumns,
			in.SKU, in.Name, in.CategoryID, in.CostPrice, in.SellingPrice, in.MRP,
			in.DiscountPct, in.LowStockThreshold)
		if err := scanProduct(row, &product); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateSKU
			}
			return fmt.Errorf("catalog: insert product: %w", err)
		}
		if in.InitialStock > 0 {
			posted, err := r.ledger.Apply(ctx, tx, stock.RecordInput{
				ProductID:      product.ID,
				ActorID:        in.ActorID,
				QuantityChange: in.InitialStock,
				Reason:         stock.ReasonInitialStock,
			})
			if err != nil {
				return err
			}
			product.CurrentStock = posted.StockAfter
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// Get fetches one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	var product Product
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err := scanProduct(row, &product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, stock.ErrProductNotFound
		}
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return product, nil
}

// List returns products sorted by name, optionally filtered by a substring
// match on name or SKU.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%')
		ORDER BY name ASC
		LIMIT $2 OFFSET $3`,
		filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// LowStock lists products at or below their threshold.
func (r *Repository) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE current_stock <= low_stock_threshold
		ORDER BY current_stock ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list low stock: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// Update rewrites the non-stock fields. current_stock is deliberately
// absent from the statement.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	var product Product
	row := r.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, category_id = $3, cost_price = $4, selling_price = $5,
			mrp = $6, discount_pct = $7, low_stock_threshold = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, in.Name, in.CategoryID, in.CostPrice, in.SellingPrice, in.MRP,
		in.DiscountPct, in.LowStockThreshold)
	if err := scanProduct(row, &product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, stock.ErrProductNotFound
		}
		return Product{}, fmt.Errorf("catalog: update product: %w", err)
	}
	return product, nil
}

// Delete removes a product unless any invoice line references it or any
// stock adjustment was ever posted for it. The ledger is append-only, so a
// product with movement history stays in place.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var refs int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM invoice_lines WHERE product_id = $1`, id).Scan(&refs); err != nil {
			return fmt.Errorf("catalog: count invoice references: %w", err)
		}
		if refs > 0 {
			return ErrProductReferenced
		}
		var movements int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM stock_adjustments WHERE product_id = $1`, id).Scan(&movements); err != nil {
			return fmt.Errorf("catalog: count adjustments: %w", err)
		}
		if movements > 0 {
			return ErrProductHasMovements
		}
		tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("catalog: delete product: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return stock.ErrProductNotFound
		}
		return nil
	})
}

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.SKU, &p.Name, &p.CategoryID, &p.CostPrice, &p.SellingPrice,
		&p.MRP, &p.DiscountPct, &p.CurrentStock, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0, 16)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
