package billing

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

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	auth      auth.Middleware
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), auth: authmw}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireActor)
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAdmin)
		r.Post("/{id}/void", h.void)
	})
}

type listResponse struct {
	Invoices []Invoice `json:"invoices"`
	Total    int       `json:"total"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fieldErrors(err))
		return
	}
	actor := shared.ActorFromContext(r.Context())
	items := make([]IssueItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, IssueItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	inv, err := h.service.IssueInvoice(r.Context(), IssueInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		RequestID:     req.RequestID,
		ActorID:       actor.ID,
		Items:         items,
	})
	if err != nil {
		h.logger.Error("issue invoice failed",
			slog.String("customer", req.CustomerName),
			slog.Int("items", len(req.Items)),
			slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{}
	if limitStr := q.Get("limit"); limitStr != "" {
		filter.Limit, _ = strconv.Atoi(limitStr)
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		filter.Offset, _ = strconv.Atoi(offsetStr)
	}
	invoices, total, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Invoices: invoices, Total: total})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id must be numeric")
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id must be numeric")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.VoidInvoice(r.Context(), id, actor.ID)
	if err != nil {
		h.logger.Error("void invoice failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCustomerNameRequired), errors.Is(err, ErrNoItems),
		errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrBadRequestID):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
	case errors.Is(err, ErrAlreadyVoid):
		httpx.Problem(w, http.StatusConflict, "Already Void", "invoice is already void")
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
