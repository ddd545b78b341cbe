package stock

import "time"

// AdjustmentRequest is the typed body for manual stock adjustments.
// Validation runs before any domain logic.
type AdjustmentRequest struct {
	ProductID      int64      `json:"product_id" validate:"required,gt=0"`
	QuantityChange int        `json:"quantity_change" validate:"required"`
	Reason         string     `json:"reason" validate:"required"`
	Note           string     `json:"note" validate:"max=500"`
	EffectiveAt    *time.Time `json:"effective_at"`
}
