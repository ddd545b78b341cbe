package billing

import (
	"errors"
	"time"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	// StatusActive marks a live invoice whose stock deductions stand.
	StatusActive InvoiceStatus = "ACTIVE"
	// StatusVoid marks a cancelled invoice whose stock has been restored.
	StatusVoid InvoiceStatus = "VOID"
)

// Invoice is a persisted bill with totals computed at issue time.
type Invoice struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Lines         []Line        `json:"lines,omitempty"`
	Subtotal      float64       `json:"subtotal"`
	CGSTAmount    float64       `json:"cgst_amount"`
	SGSTAmount    float64       `json:"sgst_amount"`
	GrandTotal    float64       `json:"grand_total"`
	Status        InvoiceStatus `json:"status"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Line is one invoice line. Product name, SKU, unit price and discount are
// frozen copies taken at issue time; later catalog edits never reach them.
type Line struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	Position    int     `json:"position"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductSKU  string  `json:"product_sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	DiscountPct float64 `json:"discount_pct"`
}

// IssueItem is one requested (product, quantity) pair.
type IssueItem struct {
	ProductID int64
	Quantity  int
}

// IssueInput describes a requested invoice.
type IssueInput struct {
	CustomerName  string
	CustomerPhone string
	// RequestID is the client-supplied idempotency key. Retrying a timed-out
	// submission with the same id is rejected instead of double-deducting.
	RequestID string
	ActorID   int64
	Items     []IssueItem
}

// ProductSnapshot carries the catalog fields frozen onto a line.
type ProductSnapshot struct {
	Name        string
	SKU         string
	UnitPrice   float64
	DiscountPct float64
}

// ListFilter pages invoice listings, most recent first.
type ListFilter struct {
	Limit  int
	Offset int
}

// TaxRates holds the flat CGST/SGST percentages applied to every invoice.
type TaxRates struct {
	CGSTPercent float64
	SGSTPercent float64
}

// ErrNoItems indicates an empty basket.
var ErrNoItems = errors.New("billing: invoice requires at least one item")

// ErrCustomerNameRequired indicates a blank customer name.
var ErrCustomerNameRequired = errors.New("billing: customer name required")

// ErrInvalidQuantity indicates a line quantity below one.
var ErrInvalidQuantity = errors.New("billing: line quantity must be at least 1")

// ErrBadRequestID indicates a request id that is not a UUID.
var ErrBadRequestID = errors.New("billing: request id must be a uuid")

// ErrInvoiceNotFound indicates an unknown invoice id.
var ErrInvoiceNotFound = errors.New("billing: invoice not found")

// ErrAlreadyVoid indicates a void request against a voided invoice.
var ErrAlreadyVoid = errors.New("billing: invoice already void")
