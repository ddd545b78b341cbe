package catalog

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/shopledger/shopledger/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	Create(ctx context.Context, in CreateInput) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	LowStock(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes catalog operations.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

// CreateProduct registers a product and seeds its opening stock.
func (s *Service) CreateProduct(ctx context.Context, in CreateInput) (Product, error) {
	product, err := s.repo.Create(ctx, in)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, in.ActorID, "catalog:create", product.ID)
	return product, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// ListProducts returns a filtered page of products.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	return s.repo.List(ctx, filter)
}

// LowStockProducts lists products at or below their threshold.
func (s *Service) LowStockProducts(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}

// UpdateProduct rewrites the mutable fields of a product. Stock counters
// are out of scope here; a submitted current_stock was already dropped at
// the DTO boundary and is logged there.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	product, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, in.ActorID, "catalog:update", id)
	return product, nil
}

// DeleteProduct removes a product that no invoice references.
func (s *Service) DeleteProduct(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "catalog:delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, productID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(productID, 10),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
