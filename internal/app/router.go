package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shopledger/shopledger/internal/analytics"
	"github.com/shopledger/shopledger/internal/auth"
	"github.com/shopledger/shopledger/internal/billing"
	"github.com/shopledger/shopledger/internal/catalog"
	"github.com/shopledger/shopledger/internal/stock"
	"github.com/shopledger/shopledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Auth             auth.Middleware
	CatalogHandler   *catalog.Handler
	StockHandler     *stock.Handler
	BillingHandler   *billing.Handler
	AnalyticsHandler *analytics.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
		Auth:   params.Auth,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
			params.AnalyticsHandler.MountRoutes(r)
		})
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/invoices", params.BillingHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
