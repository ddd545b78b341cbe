package billing

// InvoiceRequest is the typed body for invoice issuance.
type InvoiceRequest struct {
	CustomerName  string               `json:"customer_name" validate:"required,max=200"`
	CustomerPhone string               `json:"customer_phone" validate:"omitempty,max=20"`
	RequestID     string               `json:"request_id" validate:"omitempty,uuid4"`
	Items         []InvoiceItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// InvoiceItemRequest is one requested line.
type InvoiceItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}
