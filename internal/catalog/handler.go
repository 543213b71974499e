package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billhaven/billhaven/internal/platform/httpx"
	"github.com/billhaven/billhaven/internal/shared"
)

// Handler manages coupon and tax rate endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountCouponRoutes registers coupon routes.
func (h *Handler) MountCouponRoutes(r chi.Router) {
	r.Get("/", h.listCoupons)
	r.Post("/", h.createCoupon)
	r.Get("/{id}", h.getCoupon)
}

// MountTaxRateRoutes registers tax rate routes.
func (h *Handler) MountTaxRateRoutes(r chi.Router) {
	r.Get("/", h.listTaxRates)
	r.Post("/", h.createTaxRate)
	r.Get("/{id}", h.getTaxRate)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	items, err := h.service.ListCoupons(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list coupons", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"coupons": items})
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())

	var req CreateCouponRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	coupon, err := h.service.CreateCoupon(r.Context(), accountID, req)
	if err != nil {
		h.logger.Error("create coupon", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, coupon)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "coupon id must be an integer")
		return
	}

	coupon, err := h.service.GetCoupon(r.Context(), accountID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

func (h *Handler) listTaxRates(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	items, err := h.service.ListTaxRates(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list tax rates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tax_rates": items})
}

func (h *Handler) createTaxRate(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())

	var req CreateTaxRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	rate, err := h.service.CreateTaxRate(r.Context(), accountID, req)
	if err != nil {
		h.logger.Error("create tax rate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rate)
}

func (h *Handler) getTaxRate(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "tax rate id must be an integer")
		return
	}

	rate, err := h.service.GetTaxRate(r.Context(), accountID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rate)
}
