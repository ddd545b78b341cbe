package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/shopledger/shopledger/internal/catalog"
	"github.com/shopledger/shopledger/internal/shared"
)

// LowStockPort is the slice of the catalog service the scan needs.
type LowStockPort interface {
	LowStockProducts(ctx context.Context) ([]catalog.Product, error)
}

// AuditPort records low-stock alerts.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewLowStockScanHandler records an audit entry for every product at or
// below its threshold. The audit trail doubles as the alert feed.
func NewLowStockScanHandler(logger *slog.Logger, products LowStockPort, audit AuditPort) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		low, err := products.LowStockProducts(ctx)
		if err != nil {
			return err
		}
		for _, product := range low {
			err := audit.Record(ctx, shared.AuditLog{
				Action:   "stock:low_alert",
				Entity:   "product",
				EntityID: strconv.FormatInt(product.ID, 10),
				Meta: map[string]any{
					"sku":                 product.SKU,
					"current_stock":       product.CurrentStock,
					"low_stock_threshold": product.LowStockThreshold,
				},
			})
			if err != nil {
				logger.Warn("low stock alert not recorded",
					slog.Int64("product_id", product.ID),
					slog.Any("error", err))
			}
		}
		logger.Info("low stock scan complete", slog.Int("flagged", len(low)))
		return nil
	}
}
