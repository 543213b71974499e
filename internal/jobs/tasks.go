// Package jobs carries the Asynq task definitions, the enqueue client, and
// the worker that processes document side effects after state transitions.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/billhaven/billhaven/internal/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRenderPDF renders a finalized document to PDF.
	TaskTypeRenderPDF = "document:render_pdf"
	// TaskTypeSendEmail sends a finalized document to the customer.
	TaskTypeSendEmail = "document:send_email"
)

// DocumentPayload identifies the document a task operates on.
type DocumentPayload struct {
	Kind       billing.DocumentKind `json:"kind"`
	AccountID  int64                `json:"account_id"`
	DocumentID int64                `json:"document_id"`
}

// NewRenderPDFTask constructs a render task.
func NewRenderPDFTask(payload DocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRenderPDF, data, asynq.MaxRetry(5), asynq.Queue(QueueDefault)), nil
}

// NewSendEmailTask constructs an email task.
func NewSendEmailTask(payload DocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5), asynq.Queue(QueueDefault)), nil
}

// Client submits document tasks to the queue. It satisfies the notifier port
// of the document services.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.client.Close() }

// EnqueueRenderPDF enqueues a render task for the document.
func (c *Client) EnqueueRenderPDF(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) error {
	task, err := NewRenderPDFTask(DocumentPayload{Kind: kind, AccountID: accountID, DocumentID: docID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// EnqueueSendEmail enqueues an email task for the document.
func (c *Client) EnqueueSendEmail(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) error {
	task, err := NewSendEmailTask(DocumentPayload{Kind: kind, AccountID: accountID, DocumentID: docID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}
