package report

import (
	"context"
	"log/slog"

	"github.com/billhaven/billhaven/internal/billing"
)

// Mailer resolves the frozen customer email of a document and hands the
// rendered PDF off for delivery.
type Mailer struct {
	logger    *slog.Logger
	repo      billing.Repository
	snapshots SnapshotSource
}

// NewMailer constructs a Mailer.
func NewMailer(logger *slog.Logger, repo billing.Repository, snapshots SnapshotSource) *Mailer {
	return &Mailer{logger: logger, repo: repo, snapshots: snapshots}
}

// SendDocument emails the document to the snapshotted customer address.
// Documents without a snapshot or an email address are skipped, not failed.
func (m *Mailer) SendDocument(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) error {
	doc, err := m.repo.GetDocument(ctx, accountID, docID, kind, false)
	if err != nil {
		return err
	}
	if doc.CustomerSnapshotID == nil {
		m.logger.Info("skip document email: no customer snapshot",
			slog.String("kind", string(kind)), slog.Int64("document_id", docID))
		return nil
	}
	snap, err := m.snapshots.GetSnapshot(ctx, *doc.CustomerSnapshotID)
	if err != nil {
		return err
	}
	if snap.Email == nil || *snap.Email == "" {
		m.logger.Info("skip document email: customer has no email",
			slog.String("kind", string(kind)), slog.Int64("document_id", docID))
		return nil
	}

	// Placeholder: integrate with SMTP/Mailpit in phase 2.
	m.logger.Info("document email dispatched",
		slog.String("kind", string(kind)),
		slog.Int64("document_id", docID),
		slog.String("to", *snap.Email))
	return nil
}
