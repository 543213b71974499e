package report

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/platform/httpx"
	"github.com/billhaven/billhaven/internal/shared"
)

// Handler serves on-demand PDF previews of documents.
type Handler struct {
	logger   *slog.Logger
	repo     billing.Repository
	renderer *Renderer
	client   *Client
}

// NewHandler creates a report handler.
func NewHandler(logger *slog.Logger, repo billing.Repository, renderer *Renderer, client *Client) *Handler {
	return &Handler{logger: logger, repo: repo, renderer: renderer, client: client}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/{kind}/{id}/pdf", h.documentPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func parseKind(s string) (billing.DocumentKind, bool) {
	switch s {
	case "invoices":
		return billing.KindInvoice, true
	case "credit-notes":
		return billing.KindCreditNote, true
	case "quotes":
		return billing.KindQuote, true
	}
	return "", false
}

func (h *Handler) documentPDF(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Kind", "kind must be invoices, credit-notes, or quotes")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be an integer")
		return
	}

	doc, err := h.repo.GetDocument(r.Context(), accountID, id, kind, false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	html, err := h.renderer.RenderHTML(r.Context(), doc)
	if err != nil {
		h.logger.Error("render document html", slog.Any("error", err), slog.Int64("document_id", id))
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render document pdf", slog.Any("error", err), slog.Int64("document_id", id))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=document.pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
