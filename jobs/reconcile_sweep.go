package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/shopledger/shopledger/internal/stock"
)

// ReconcilePort is the slice of the stock service the sweep needs.
type ReconcilePort interface {
	ReconcileAll(ctx context.Context) ([]stock.ReconcileReport, error)
}

// NewReconcileSweepHandler reports any product whose counter drifted from
// the adjustment log. Drift means a write bypassed the ledger and needs a
// human decision; the sweep only surfaces it, it never repairs.
func NewReconcileSweepHandler(logger *slog.Logger, svc ReconcilePort) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		drifted, err := svc.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		if len(drifted) == 0 {
			logger.Info("reconcile sweep clean")
			return nil
		}
		for _, report := range drifted {
			logger.Error("stock ledger drift",
				slog.Int64("product_id", report.ProductID),
				slog.Int64("ledger_sum", report.LedgerSum),
				slog.Int64("current_stock", report.CurrentStock))
		}
		return nil
	}
}
