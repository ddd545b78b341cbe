package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopledger/shopledger/internal/auth"
	"github.com/shopledger/shopledger/internal/platform/httpx"
	"github.com/shopledger/shopledger/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	auth      auth.Middleware
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), auth: authmw}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireActor)
		r.Get("/adjustments", h.listAdjustments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAdmin)
		r.Post("/adjustments", h.createAdjustment)
		r.Get("/reconcile/{productID}", h.reconcile)
	})
}

func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", fieldErrors(err))
		return
	}
	actor := shared.ActorFromContext(r.Context())
	input := RecordInput{
		ProductID:      req.ProductID,
		ActorID:        actor.ID,
		QuantityChange: req.QuantityChange,
		Reason:         Reason(req.Reason),
		Note:           req.Note,
	}
	if req.EffectiveAt != nil {
		input.EffectiveAt = *req.EffectiveAt
	}
	posted, err := h.service.RecordAdjustment(r.Context(), input)
	if err != nil {
		h.logger.Error("record adjustment failed",
			slog.Int64("product_id", req.ProductID),
			slog.Int("qty_change", req.QuantityChange),
			slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, posted)
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AdjustmentFilter{}
	if idStr := q.Get("product_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id must be numeric")
			return
		}
		filter.ProductID = id
	}
	var err error
	if filter.From, err = parseDate(q.Get("from"), false); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	if filter.To, err = parseDate(q.Get("to"), true); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	entries, err := h.service.ListAdjustments(r.Context(), filter)
	if err != nil {
		h.logger.Error("list adjustments failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product id must be numeric")
		return
	}
	report, err := h.service.Reconcile(r.Context(), productID)
	if err != nil {
		h.logger.Error("reconcile failed", slog.Int64("product_id", productID), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// RespondError maps stock domain errors onto problem responses. Billing
// reuses it for line-level failures so insufficient-stock payloads look the
// same on both surfaces.
//
// Serialization failures (40001) and deadlocks (40P01) surface as 409: under
// RepeatableRead the loser of a row race aborts instead of re-evaluating the
// conditional update, so the client must retry rather than treat it as an
// oversell.
func RespondError(w http.ResponseWriter, err error) {
	var ise *InsufficientStockError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01"):
		httpx.RespondError(w, httpx.ErrConflict)
	case errors.As(err, &ise):
		httpx.JSON(w, http.StatusBadRequest, struct {
			httpx.ProblemDetail
			ProductID int64 `json:"product_id"`
			Requested int   `json:"requested"`
			Available int   `json:"available"`
		}{
			ProblemDetail: httpx.ProblemDetail{
				Title:  "Insufficient Stock",
				Status: http.StatusBadRequest,
				Detail: ise.Error(),
			},
			ProductID: ise.ProductID,
			Requested: ise.Requested,
			Available: ise.Available,
		})
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnknownReason):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this request was already processed")
	default:
		httpx.RespondError(w, err)
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

func parseDate(value string, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
