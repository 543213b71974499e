package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/billhaven/billhaven/internal/billing"
)

// Renderer produces and stores the PDF of a finalized document.
type Renderer interface {
	RenderDocument(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) (string, error)
}

// Mailer delivers a finalized document to its customer.
type Mailer interface {
	SendDocument(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) error
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Renderer  Renderer
	Mailer    Mailer
	Metrics   *Metrics
}

// Worker wraps the Asynq server processing document tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) *Worker {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	w := &Worker{server: srv, mux: asynq.NewServeMux(), logger: cfg.Logger}
	w.mux.HandleFunc(TaskTypeRenderPDF, w.handleRenderPDF(cfg.Renderer, cfg.Metrics))
	w.mux.HandleFunc(TaskTypeSendEmail, w.handleSendEmail(cfg.Mailer, cfg.Metrics))
	return w
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("jobs: worker not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (w *Worker) handleRenderPDF(renderer Renderer, metrics *Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeRenderPDF)
		var payload DocumentPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if renderer == nil {
			return tracker.End(nil)
		}
		ref, err := renderer.RenderDocument(ctx, payload.Kind, payload.AccountID, payload.DocumentID)
		if err != nil {
			w.logger.Error("render document pdf",
				slog.Any("error", err),
				slog.String("kind", string(payload.Kind)),
				slog.Int64("document_id", payload.DocumentID))
			return tracker.End(err)
		}
		w.logger.Info("rendered document pdf",
			slog.String("kind", string(payload.Kind)),
			slog.Int64("document_id", payload.DocumentID),
			slog.String("file_ref", ref))
		return tracker.End(nil)
	}
}

func (w *Worker) handleSendEmail(mailer Mailer, metrics *Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeSendEmail)
		var payload DocumentPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if mailer == nil {
			return tracker.End(nil)
		}
		if err := mailer.SendDocument(ctx, payload.Kind, payload.AccountID, payload.DocumentID); err != nil {
			w.logger.Error("send document email",
				slog.Any("error", err),
				slog.String("kind", string(payload.Kind)),
				slog.Int64("document_id", payload.DocumentID))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
