package catalog

// ProductForm is the typed body for creating a product.
type ProductForm struct {
	SKU               string  `json:"sku" validate:"required,max=64"`
	Name              string  `json:"name" validate:"required,max=200"`
	CategoryID        *int64  `json:"category_id" validate:"omitempty,gt=0"`
	CostPrice         float64 `json:"cost_price" validate:"gte=0"`
	SellingPrice      float64 `json:"selling_price" validate:"required,gt=0"`
	MRP               float64 `json:"mrp" validate:"gte=0"`
	DiscountPct       float64 `json:"discount_pct" validate:"gte=0,lte=100"`
	InitialStock      int     `json:"initial_stock" validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// ProductUpdateForm is the typed body for editing a product. CurrentStock
// is accepted so old clients don't break, but it is never applied; stock
// moves only through adjustments.
type ProductUpdateForm struct {
	Name              string  `json:"name" validate:"required,max=200"`
	CategoryID        *int64  `json:"category_id" validate:"omitempty,gt=0"`
	CostPrice         float64 `json:"cost_price" validate:"gte=0"`
	SellingPrice      float64 `json:"selling_price" validate:"required,gt=0"`
	MRP               float64 `json:"mrp" validate:"gte=0"`
	DiscountPct       float64 `json:"discount_pct" validate:"gte=0,lte=100"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
	CurrentStock      *int    `json:"current_stock"`
}
