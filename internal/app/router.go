package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/billhaven/billhaven/internal/catalog"
	"github.com/billhaven/billhaven/internal/creditnotes"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/invoices"
	"github.com/billhaven/billhaven/internal/numbering"
	"github.com/billhaven/billhaven/internal/observability"
	"github.com/billhaven/billhaven/internal/payments"
	"github.com/billhaven/billhaven/internal/quotes"
	"github.com/billhaven/billhaven/internal/shared"
	"github.com/billhaven/billhaven/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Idempotency *shared.IdempotencyStore

	CustomerHandler   *customers.Handler
	InvoiceHandler    *invoices.Handler
	CreditNoteHandler *creditnotes.Handler
	QuoteHandler      *quotes.Handler
	CatalogHandler    *catalog.Handler
	NumberingHandler  *numbering.Handler
	PaymentHandler    *payments.Handler
	ReportHandler     *report.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router for the billing API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := "ok"
		code := http.StatusOK
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				status = "database unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if code == http.StatusOK && params.Redis != nil {
			if err := params.Redis.Ping(req.Context()).Err(); err != nil {
				status = "redis unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:      params.Logger,
			Config:      params.Config,
			Idempotency: params.Idempotency,
		}) {
			api.Use(mw)
		}
		if params.Metrics != nil {
			api.Use(params.Metrics.Middleware)
		}

		api.Route("/customers", params.CustomerHandler.MountRoutes)
		api.Route("/invoices", params.InvoiceHandler.MountRoutes)
		api.Route("/credit-notes", params.CreditNoteHandler.MountRoutes)
		api.Route("/quotes", params.QuoteHandler.MountRoutes)
		api.Route("/coupons", params.CatalogHandler.MountCouponRoutes)
		api.Route("/tax-rates", params.CatalogHandler.MountTaxRateRoutes)
		api.Route("/numbering-systems", params.NumberingHandler.MountRoutes)
		api.Route("/payments", params.PaymentHandler.MountRoutes)
		if params.ReportHandler != nil {
			api.Route("/reports", params.ReportHandler.MountRoutes)
		}
	})

	return r
}
