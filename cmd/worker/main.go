package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/billhaven/billhaven/internal/app"
	"github.com/billhaven/billhaven/internal/billing/store"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/jobs"
	"github.com/billhaven/billhaven/internal/platform/db"
	"github.com/billhaven/billhaven/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	billingStore := store.New(pool)
	billingRepo := store.NewRepository(billingStore)
	customerRepo := customers.NewRepository(pool)

	reportClient := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer(billingRepo, customerRepo, reportClient, report.DiskStore{Dir: cfg.PDFDir})
	mailer := report.NewMailer(logger, billingRepo, customerRepo)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Renderer:  renderer,
		Mailer:    mailer,
		Metrics:   jobs.NewMetrics(nil),
	})

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
