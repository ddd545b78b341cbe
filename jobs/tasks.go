// Package jobs holds the asynq background tasks: the nightly ledger
// reconciliation sweep and the low-stock scan.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconcileSweep compares the adjustment log against the stock
	// counter for every product.
	TaskReconcileSweep = "stock:reconcile_sweep"
	// TaskLowStockScan records an audit entry per product at or below its
	// low-stock threshold.
	TaskLowStockScan = "stock:lowstock_scan"
)

// SweepPayload carries scheduling metadata for both sweep tasks.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReconcileSweepTask constructs the reconciliation sweep task.
func NewReconcileSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
