// Package catalog manages the product master data. It owns every product
// field except current_stock: the counter belongs to the stock ledger and
// catalog writes never touch it directly.
package catalog

import (
	"errors"
	"time"
)

// Product is one catalog entry.
type Product struct {
	ID                int64     `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	CategoryID        *int64    `json:"category_id,omitempty"`
	CostPrice         float64   `json:"cost_price"`
	SellingPrice      float64   `json:"selling_price"`
	MRP               float64   `json:"mrp"`
	DiscountPct       float64   `json:"discount_pct"`
	CurrentStock      int       `json:"current_stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateInput holds the fields accepted when adding a product.
// InitialStock seeds the ledger with an "Initial Stock" adjustment; the
// counter itself starts at zero so the adjustment log stays authoritative.
type CreateInput struct {
	SKU               string
	Name              string
	CategoryID        *int64
	CostPrice         float64
	SellingPrice      float64
	MRP               float64
	DiscountPct       float64
	InitialStock      int
	LowStockThreshold int
	ActorID           int64
}

// UpdateInput holds the mutable non-stock fields of a product.
type UpdateInput struct {
	Name              string
	CategoryID        *int64
	CostPrice         float64
	SellingPrice      float64
	MRP               float64
	DiscountPct       float64
	LowStockThreshold int
	ActorID           int64
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

var (
	// ErrDuplicateSKU is returned when a create collides on the SKU unique index.
	ErrDuplicateSKU = errors.New("catalog: sku already exists")
	// ErrProductReferenced blocks deleting a product that appears on an invoice.
	ErrProductReferenced = errors.New("catalog: product referenced by invoices")
	// ErrProductHasMovements blocks deleting a product with ledger history.
	ErrProductHasMovements = errors.New("catalog: product has stock movements")
)
