package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/billhaven/billhaven/internal/app"
	"github.com/billhaven/billhaven/internal/billing/store"
	"github.com/billhaven/billhaven/internal/catalog"
	"github.com/billhaven/billhaven/internal/creditnotes"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/invoices"
	"github.com/billhaven/billhaven/internal/jobs"
	"github.com/billhaven/billhaven/internal/numbering"
	"github.com/billhaven/billhaven/internal/observability"
	"github.com/billhaven/billhaven/internal/payments"
	"github.com/billhaven/billhaven/internal/platform/cache"
	"github.com/billhaven/billhaven/internal/platform/db"
	"github.com/billhaven/billhaven/internal/quotes"
	"github.com/billhaven/billhaven/internal/shared"
	"github.com/billhaven/billhaven/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	billingStore := store.New(pool)
	billingRepo := store.NewRepository(billingStore)
	behavior := cfg.BehaviorResolver()

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customerRepo)
	customerHandler := customers.NewHandler(logger, customerService)

	numberingRepo := numbering.NewRepository(pool)
	numberingHandler := numbering.NewHandler(logger, numberingRepo)

	paymentRepo := payments.NewRepository(pool)
	paymentHandler := payments.NewHandler(logger, paymentRepo)

	var checkout payments.CheckoutProvider
	if cfg.CheckoutURL != "" {
		checkout = payments.NewHTTPProvider(cfg.CheckoutURL, cfg.CheckoutAPIKey)
	}

	invoiceService := invoices.NewService(invoices.Deps{
		Logger:    logger,
		Repo:      billingRepo,
		Snapshots: customerService,
		Numbering: numberingRepo,
		Checkout:  checkout,
		Payments:  paymentRepo,
		Notifier:  jobsClient,
		Behavior:  behavior,
	})
	invoiceHandler := invoices.NewHandler(logger, invoiceService)

	creditNoteService := creditnotes.NewService(creditnotes.Deps{
		Logger:    logger,
		Repo:      billingRepo,
		Numbering: numberingRepo,
		Invoices:  invoiceService,
		Notifier:  jobsClient,
		Behavior:  behavior,
	})
	creditNoteHandler := creditnotes.NewHandler(logger, creditNoteService)

	quoteService := quotes.NewService(quotes.Deps{
		Logger:    logger,
		Repo:      billingRepo,
		Snapshots: customerService,
		Numbering: numberingRepo,
		Notifier:  jobsClient,
		Behavior:  behavior,
	})
	quoteHandler := quotes.NewHandler(logger, quoteService)

	catalogService := catalog.NewService(billingStore)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer(billingRepo, customerRepo, reportClient, report.DiskStore{Dir: cfg.PDFDir})
	reportHandler := report.NewHandler(logger, billingRepo, renderer, reportClient)

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(pool)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		Pool:        pool,
		Redis:       redisClient,
		Idempotency: idempotencyStore,

		CustomerHandler:   customerHandler,
		InvoiceHandler:    invoiceHandler,
		CreditNoteHandler: creditNoteHandler,
		QuoteHandler:      quoteHandler,
		CatalogHandler:    catalogHandler,
		NumberingHandler:  numberingHandler,
		PaymentHandler:    paymentHandler,
		ReportHandler:     reportHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
