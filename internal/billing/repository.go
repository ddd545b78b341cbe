package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopledger/shopledger/internal/platform/db"
	"github.com/shopledger/shopledger/internal/stock"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx     pgx.Tx
	ledger stock.Ledger
}

// WithTx executes the callback inside a repeatable-read transaction. The
// deferred rollback in db.WithTx also covers a panicking callback, so a
// recovered handler panic cannot leak an open transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("billing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetInvoice loads an invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT id, number, customer_name, customer_phone, subtotal, cgst_amount, sgst_amount, grand_total, status, created_by, created_at
FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ListInvoices returns recent invoices (without lines) and the total count.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, customer_name, customer_phone, subtotal, cgst_amount, sgst_amount, grand_total, status, created_by, created_at
FROM invoices ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *txRepository) NextNumber(ctx context.Context) (string, error) {
	var number string
	err := r.tx.QueryRow(ctx, `SELECT 'INV-' || LPAD(nextval('invoice_number_seq')::text, 6, '0')`).Scan(&number)
	return number, err
}

func (r *txRepository) ProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error) {
	var snap ProductSnapshot
	err := r.tx.QueryRow(ctx, `SELECT name, sku, selling_price, discount_pct FROM products WHERE id = $1`, productID).
		Scan(&snap.Name, &snap.SKU, &snap.UnitPrice, &snap.DiscountPct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductSnapshot{}, stock.ErrProductNotFound
		}
		return ProductSnapshot{}, err
	}
	return snap, nil
}

func (r *txRepository) ApplyAdjustment(ctx context.Context, in stock.RecordInput) (stock.PostedAdjustment, error) {
	return r.ledger.Apply(ctx, r.tx, in)
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	return r.tx.QueryRow(ctx, `INSERT INTO invoices (number, customer_name, customer_phone, subtotal, cgst_amount, sgst_amount, grand_total, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id, created_at`,
		inv.Number, inv.CustomerName, inv.CustomerPhone, inv.Subtotal, inv.CGSTAmount, inv.SGSTAmount, inv.GrandTotal, string(inv.Status), inv.CreatedBy).
		Scan(&inv.ID, &inv.CreatedAt)
}

func (r *txRepository) InsertLines(ctx context.Context, invoiceID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, position, product_id, product_name, product_sku, quantity, unit_price, discount_pct)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			invoiceID, line.Position, line.ProductID, line.ProductName, line.ProductSKU, line.Quantity, line.UnitPrice, line.DiscountPct); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT id, number, customer_name, customer_phone, subtotal, cgst_amount, sgst_amount, grand_total, status, created_by, created_at
FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.Lines, err = loadLines(ctx, r.tx, id)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerName, &inv.CustomerPhone, &inv.Subtotal, &inv.CGSTAmount, &inv.SGSTAmount, &inv.GrandTotal, &status, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func loadLines(ctx context.Context, q querier, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, position, product_id, product_name, product_sku, quantity, unit_price, discount_pct
FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Position, &line.ProductID, &line.ProductName, &line.ProductSKU, &line.Quantity, &line.UnitPrice, &line.DiscountPct); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
