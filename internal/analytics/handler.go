package analytics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopledger/shopledger/internal/auth"
	"github.com/shopledger/shopledger/internal/platform/httpx"
	"github.com/shopledger/shopledger/internal/stock"
)

const maxLookbackDays = 365

// Handler wires the prediction endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler constructs the analytics handler.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authmw}
}

// MountRoutes registers analytics routes onto the products subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireActor)
		r.Get("/{id}/low-stock-prediction", h.predict)
	})
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product id must be numeric")
		return
	}
	lookbackDays := DefaultLookbackDays
	if raw := r.URL.Query().Get("lookbackDays"); raw != "" {
		lookbackDays, err = strconv.Atoi(raw)
		if err != nil || lookbackDays < 1 || lookbackDays > maxLookbackDays {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "lookbackDays must be between 1 and 365")
			return
		}
	}

	prediction, err := h.service.PredictDepletion(r.Context(), productID, lookbackDays)
	if err != nil {
		if errors.Is(err, stock.ErrProductNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
			return
		}
		h.logger.Error("predict depletion failed",
			slog.Int64("product_id", productID),
			slog.Int("lookback_days", lookbackDays),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, prediction)
}
