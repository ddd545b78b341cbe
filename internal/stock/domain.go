package stock

import (
	"errors"
	"fmt"
	"time"
)

// Reason enumerates the audited causes of a stock movement.
type Reason string

const (
	// ReasonInitialStock records the opening balance at product registration.
	ReasonInitialStock Reason = "Initial Stock"
	// ReasonReceivedShipment records inbound supplier stock.
	ReasonReceivedShipment Reason = "Received Shipment"
	// ReasonCustomerReturn records stock coming back from a customer.
	ReasonCustomerReturn Reason = "Customer Return"
	// ReasonDamagedGoods records write-offs of damaged units.
	ReasonDamagedGoods Reason = "Damaged Goods"
	// ReasonExpiredGoods records write-offs of expired units.
	ReasonExpiredGoods Reason = "Expired Goods"
	// ReasonStockCorrection records a count correction in either direction.
	ReasonStockCorrection Reason = "Stock Correction"
	// ReasonInternalUse records units consumed by the business itself.
	ReasonInternalUse Reason = "Internal Use"
	// ReasonManualRemoval records deliberate removals outside a sale.
	ReasonManualRemoval Reason = "Manual Removal"
	// ReasonSale records units consumed by an invoice line.
	ReasonSale Reason = "Sale"
	// ReasonInvoiceVoid restores units when an invoice is voided.
	ReasonInvoiceVoid Reason = "Invoice Void"
)

// Valid reports whether the reason is one of the enumerated values.
func (r Reason) Valid() bool {
	switch r {
	case ReasonInitialStock, ReasonReceivedShipment, ReasonCustomerReturn,
		ReasonDamagedGoods, ReasonExpiredGoods, ReasonStockCorrection,
		ReasonInternalUse, ReasonManualRemoval, ReasonSale, ReasonInvoiceVoid:
		return true
	}
	return false
}

// Adjustment is one immutable, signed entry of the stock adjustment log.
type Adjustment struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	ActorID        int64     `json:"actor_id"`
	QuantityChange int       `json:"quantity_change"`
	Reason         Reason    `json:"reason"`
	Note           string    `json:"note,omitempty"`
	EffectiveAt    time.Time `json:"effective_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// PostedAdjustment pairs a written adjustment with the stock level it produced.
type PostedAdjustment struct {
	Adjustment
	StockAfter int `json:"stock_after"`
}

// RecordInput describes a requested stock movement.
type RecordInput struct {
	ProductID      int64
	ActorID        int64
	QuantityChange int
	Reason         Reason
	Note           string
	EffectiveAt    time.Time
}

// AdjustmentFilter narrows adjustment log listings.
type AdjustmentFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// ReconcileReport compares the ledger sum against the product counter.
type ReconcileReport struct {
	ProductID    int64 `json:"product_id"`
	LedgerSum    int64 `json:"ledger_sum"`
	CurrentStock int64 `json:"current_stock"`
	Consistent   bool  `json:"consistent"`
}

// ErrInvalidQuantity indicates a zero quantity change.
var ErrInvalidQuantity = errors.New("stock: quantity change must be non zero")

// ErrUnknownReason indicates a reason outside the enumerated set.
var ErrUnknownReason = errors.New("stock: unknown adjustment reason")

// ErrProductNotFound indicates the referenced product does not exist.
var ErrProductNotFound = errors.New("stock: product not found")

// InsufficientStockError is returned when a negative movement would push the
// product counter below zero. Requested and Available let callers build a
// precise user-facing message.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}
