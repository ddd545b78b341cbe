package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopledger/shopledger/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Record(ctx context.Context, in RecordInput) (PostedAdjustment, error)
	List(ctx context.Context, filter AdjustmentFilter) ([]Adjustment, error)
	SalesVolume(ctx context.Context, productID int64, from, to time.Time) (int, error)
	Reconcile(ctx context.Context, productID int64) (ReconcileReport, error)
	ProductIDs(ctx context.Context) ([]int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger operations.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

// RecordAdjustment appends one adjustment and applies its delta to the
// product counter as one logical operation.
func (s *Service) RecordAdjustment(ctx context.Context, in RecordInput) (PostedAdjustment, error) {
	if in.ProductID == 0 {
		return PostedAdjustment{}, errors.New("stock: product required")
	}
	if in.QuantityChange == 0 {
		return PostedAdjustment{}, ErrInvalidQuantity
	}
	if !in.Reason.Valid() {
		return PostedAdjustment{}, ErrUnknownReason
	}
	posted, err := s.repo.Record(ctx, in)
	if err != nil {
		return PostedAdjustment{}, err
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.ActorID,
			Action:   fmt.Sprintf("stock:%s", in.Reason),
			Entity:   "stock_adjustment",
			EntityID: fmt.Sprintf("%d", posted.ID),
			Meta: map[string]any{
				"product_id":  in.ProductID,
				"qty_change":  in.QuantityChange,
				"stock_after": posted.StockAfter,
				"note":        in.Note,
			},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("audit record failed",
				slog.String("action", fmt.Sprintf("stock:%s", in.Reason)),
				slog.Int64("adjustment_id", posted.ID),
				slog.Any("error", err))
		}
	}
	return posted, nil
}

// ListAdjustments returns audit trail entries for a product.
func (s *Service) ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]Adjustment, error) {
	return s.repo.List(ctx, filter)
}

// SalesVolume returns units sold for a product inside [from, to].
func (s *Service) SalesVolume(ctx context.Context, productID int64, from, to time.Time) (int, error) {
	if productID == 0 {
		return 0, errors.New("stock: product required")
	}
	return s.repo.SalesVolume(ctx, productID, from, to)
}

// Reconcile verifies that the ledger sum equals the product counter.
// Maintenance operation, not a hot path.
func (s *Service) Reconcile(ctx context.Context, productID int64) (ReconcileReport, error) {
	if productID == 0 {
		return ReconcileReport{}, errors.New("stock: product required")
	}
	return s.repo.Reconcile(ctx, productID)
}

// ReconcileAll runs the reconciliation check over every product and returns
// the reports that show drift.
func (s *Service) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	ids, err := s.repo.ProductIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drifted []ReconcileReport
	for _, id := range ids {
		report, err := s.repo.Reconcile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("stock: reconcile product %d: %w", id, err)
		}
		if !report.Consistent {
			drifted = append(drifted, report)
		}
	}
	return drifted, nil
}
