package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopledger/shopledger/internal/auth"
	"github.com/shopledger/shopledger/internal/platform/httpx"
	"github.com/shopledger/shopledger/internal/shared"
	"github.com/shopledger/shopledger/internal/stock"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	auth      auth.Middleware
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), auth: authmw}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireActor)
		r.Get("/", h.list)
		r.Get("/lowstock", h.lowStock)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAdmin)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form ProductForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fieldErrors(err))
		return
	}
	actor := shared.ActorFromContext(r.Context())
	product, err := h.service.CreateProduct(r.Context(), CreateInput{
		SKU:               form.SKU,
		Name:              form.Name,
		CategoryID:        form.CategoryID,
		CostPrice:         form.CostPrice,
		SellingPrice:      form.SellingPrice,
		MRP:               form.MRP,
		DiscountPct:       form.DiscountPct,
		InitialStock:      form.InitialStock,
		LowStockThreshold: form.LowStockThreshold,
		ActorID:           actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	products, err := h.service.ListProducts(r.Context(), ListFilter{
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStockProducts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var form ProductUpdateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fieldErrors(err))
		return
	}
	if form.CurrentStock != nil {
		h.logger.Warn("ignoring current_stock in product update",
			slog.Int64("product_id", id),
			slog.Int("submitted", *form.CurrentStock))
	}
	actor := shared.ActorFromContext(r.Context())
	product, err := h.service.UpdateProduct(r.Context(), id, UpdateInput{
		Name:              form.Name,
		CategoryID:        form.CategoryID,
		CostPrice:         form.CostPrice,
		SellingPrice:      form.SellingPrice,
		MRP:               form.MRP,
		DiscountPct:       form.DiscountPct,
		LowStockThreshold: form.LowStockThreshold,
		ActorID:           actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteProduct(r.Context(), id, actor.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a product with this SKU already exists")
	case errors.Is(err, ErrProductReferenced):
		httpx.Problem(w, http.StatusConflict, "Conflict", "product is referenced by invoices and cannot be deleted")
	case errors.Is(err, ErrProductHasMovements):
		httpx.Problem(w, http.StatusConflict, "Conflict", "product has stock movements and cannot be deleted")
	default:
		stock.RespondError(w, err)
	}
}

func fieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}
