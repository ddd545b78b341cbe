package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shopledger/shopledger/internal/shared"
	"github.com/shopledger/shopledger/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
}

// TxRepository exposes the operations available inside an invoice transaction.
// ApplyAdjustment is the stock ledger primitive; the billing transaction never
// touches current_stock through any other path.
type TxRepository interface {
	NextNumber(ctx context.Context) (string, error)
	ProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error)
	ApplyAdjustment(ctx context.Context, in stock.RecordInput) (stock.PostedAdjustment, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertLines(ctx context.Context, invoiceID int64, lines []Line) error
	InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	SetStatus(ctx context.Context, id int64, status InvoiceStatus) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates derived read models after invoices change.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// IdempotencyPort guards against re-applied invoice submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service issues, reads and voids invoices.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	bumper      CacheBumper
	rates       TaxRates
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, idem IdempotencyPort, bumper CacheBumper, rates TaxRates) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, idempotency: idem, bumper: bumper, rates: rates}
}

// IssueInvoice validates the basket, freezes prices, computes totals and
// persists the invoice together with one Sale adjustment per line inside a
// single transaction. Either everything commits or nothing does: a failed
// line (unknown product, oversell) rolls back the whole invoice.
func (s *Service) IssueInvoice(ctx context.Context, in IssueInput) (Invoice, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return Invoice{}, ErrCustomerNameRequired
	}
	if len(in.Items) == 0 {
		return Invoice{}, ErrNoItems
	}
	for _, item := range in.Items {
		if item.ProductID <= 0 {
			return Invoice{}, stock.ErrProductNotFound
		}
		if item.Quantity < 1 {
			return Invoice{}, ErrInvalidQuantity
		}
	}

	requestID := strings.TrimSpace(in.RequestID)
	if requestID != "" {
		parsed, err := uuid.Parse(requestID)
		if err != nil {
			return Invoice{}, ErrBadRequestID
		}
		// canonical form so retries with different casing hit the same key
		requestID = parsed.String()
	}

	idemKey := ""
	if s.idempotency != nil && requestID != "" {
		idemKey = fmt.Sprintf("invoice:%s", requestID)
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "billing"); err != nil {
			return Invoice{}, err
		}
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return fmt.Errorf("billing: allocate invoice number: %w", err)
		}

		lines := make([]Line, 0, len(in.Items))
		for i, item := range in.Items {
			snap, err := tx.ProductSnapshot(ctx, item.ProductID)
			if err != nil {
				return err
			}
			// conditional decrement; fails the whole tx on oversell
			if _, err := tx.ApplyAdjustment(ctx, stock.RecordInput{
				ProductID:      item.ProductID,
				ActorID:        in.ActorID,
				QuantityChange: -item.Quantity,
				Reason:         stock.ReasonSale,
				Note:           fmt.Sprintf("Invoice %s", number),
			}); err != nil {
				return err
			}
			lines = append(lines, Line{
				Position:    i + 1,
				ProductID:   item.ProductID,
				ProductName: snap.Name,
				ProductSKU:  snap.SKU,
				Quantity:    item.Quantity,
				UnitPrice:   snap.UnitPrice,
				DiscountPct: snap.DiscountPct,
			})
		}

		totals := ComputeTotals(lines, s.rates)
		inv = Invoice{
			Number:        number,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			CustomerPhone: strings.TrimSpace(in.CustomerPhone),
			Subtotal:      totals.Subtotal,
			CGSTAmount:    totals.CGSTAmount,
			SGSTAmount:    totals.SGSTAmount,
			GrandTotal:    totals.GrandTotal,
			Status:        StatusActive,
			CreatedBy:     in.ActorID,
		}
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			return fmt.Errorf("billing: insert invoice: %w", err)
		}
		if err := tx.InsertLines(ctx, inv.ID, lines); err != nil {
			return fmt.Errorf("billing: insert invoice lines: %w", err)
		}
		for i := range lines {
			lines[i].InvoiceID = inv.ID
		}
		inv.Lines = lines
		return nil
	})
	if err != nil {
		if idemKey != "" && !errors.Is(err, shared.ErrIdempotencyConflict) {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Invoice{}, err
	}

	s.afterWrite(ctx, in.ActorID, "billing:issue", inv)
	return inv, nil
}

// GetInvoice returns one invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns recent invoices without lines plus the total count.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListInvoices(ctx, filter)
}

// VoidInvoice flips an active invoice to VOID and restores the deducted
// stock with one Invoice Void adjustment per line, atomically. Totals and
// frozen line prices are untouched.
func (s *Service) VoidInvoice(ctx context.Context, id, actorID int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.InvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusVoid {
			return ErrAlreadyVoid
		}
		if err := tx.SetStatus(ctx, id, StatusVoid); err != nil {
			return err
		}
		for _, line := range inv.Lines {
			if _, err := tx.ApplyAdjustment(ctx, stock.RecordInput{
				ProductID:      line.ProductID,
				ActorID:        actorID,
				QuantityChange: line.Quantity,
				Reason:         stock.ReasonInvoiceVoid,
				Note:           fmt.Sprintf("Void of invoice %s", inv.Number),
			}); err != nil {
				return err
			}
		}
		inv.Status = StatusVoid
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterWrite(ctx, actorID, "billing:void", inv)
	return inv, nil
}

func (s *Service) afterWrite(ctx context.Context, actorID int64, action string, inv Invoice) {
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "invoice",
			EntityID: inv.Number,
			Meta: map[string]any{
				"invoice_id":  inv.ID,
				"customer":    inv.CustomerName,
				"grand_total": inv.GrandTotal,
				"lines":       len(inv.Lines),
			},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("audit record failed",
				slog.String("action", action),
				slog.String("invoice", inv.Number),
				slog.Any("error", err))
		}
	}
	if s.bumper != nil {
		if err := s.bumper.Bump(ctx); err != nil && s.logger != nil {
			s.logger.Warn("prediction cache bump failed", slog.Any("error", err))
		}
	}
}
