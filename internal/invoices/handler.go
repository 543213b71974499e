package invoices

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/platform/httpx"
	"github.com/billhaven/billhaven/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.deleteDraft)
	r.Post("/{id}/finalize", h.finalize)
	r.Post("/{id}/void", h.void)
	r.Post("/{id}/revise", h.revise)
	r.Get("/{id}/revisions", h.revisions)
	r.Post("/{id}/lines", h.addLine)
	r.Put("/{id}/lines/{lineID}", h.updateLine)
	r.Delete("/{id}/lines/{lineID}", h.deleteLine)
	r.Post("/{id}/coupons/{couponID}", h.addCoupon)
	r.Delete("/{id}/coupons/{couponID}", h.removeCoupon)
	r.Post("/{id}/tax-rates/{rateID}", h.addTaxRate)
	r.Delete("/{id}/tax-rates/{rateID}", h.removeTaxRate)
	r.Put("/{id}/shipping", h.setShipping)
	r.Delete("/{id}/shipping", h.clearShipping)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	status := billing.DocumentStatus(r.URL.Query().Get("status"))

	items, total, err := h.service.List(r.Context(), accountID, status, page, perPage)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())

	var req CreateDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.CreateDraft(r.Context(), accountID, req)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	doc, err := h.service.Get(r.Context(), accountID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	if err := h.service.DeleteDraft(r.Context(), accountID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "finalize invoice", h.service.Finalize)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "void invoice", h.service.Void)
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "revise invoice", h.service.Revise)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, accountID, id int64) (*billing.Document, error)) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	doc, err := fn(r.Context(), accountID, id)
	if err != nil {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) revisions(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	items, err := h.service.ListRevisions(r.Context(), accountID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"revisions": items})
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	var in billing.LineInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.Editor().AddLine(r.Context(), accountID, id, in)
	if err != nil {
		h.logger.Error("add invoice line", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	lineID, ok2 := pathID(r, "lineID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ids must be integers")
		return
	}

	var in billing.LineInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.Editor().UpdateLine(r.Context(), accountID, id, lineID, in)
	if err != nil {
		h.logger.Error("update invoice line", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) deleteLine(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	lineID, ok2 := pathID(r, "lineID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ids must be integers")
		return
	}

	doc, err := h.service.Editor().DeleteLine(r.Context(), accountID, id, lineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) addCoupon(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	couponID, ok2 := pathID(r, "couponID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ids must be integers")
		return
	}

	doc, err := h.service.Editor().AddCoupon(r.Context(), accountID, id, couponID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	couponID, ok2 := pathID(r, "couponID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ids must be integers")
		return
	}

	doc, err := h.service.Editor().RemoveCoupon(r.Context(), accountID, id, couponID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) addTaxRate(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	rateID, ok2 := pathID(r, "rateID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ids must be integers")
		return
	}

	doc, err := h.service.Editor().AddTaxRate(r.Context(), accountID, id, rateID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) removeTaxRate(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	rateID, ok2 := pathID(r, "rateID")
	if !ok || !ok2 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ids must be integers")
		return
	}

	doc, err := h.service.Editor().RemoveTaxRate(r.Context(), accountID, id, rateID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// ShippingRequest carries the shipping charge inputs.
type ShippingRequest struct {
	Description string      `json:"description" validate:"max=500"`
	Amount      money.Money `json:"amount"`
}

func (h *Handler) setShipping(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	var req ShippingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.Editor().SetShipping(r.Context(), accountID, id, &billing.Shipping{
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		h.logger.Error("set invoice shipping", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) clearShipping(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be an integer")
		return
	}

	doc, err := h.service.Editor().SetShipping(r.Context(), accountID, id, nil)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}
