package numbering

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billhaven/billhaven/internal/platform/httpx"
	"github.com/billhaven/billhaven/internal/shared"
)

// Handler manages numbering system endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     RepositoryPort
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers numbering system routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/preview", h.preview)
}

// CreateSystemRequest carries a new numbering scheme.
type CreateSystemRequest struct {
	Name    string         `json:"name" validate:"required,max=200"`
	Pattern string         `json:"pattern" validate:"required,max=200"`
	Padding int            `json:"padding" validate:"min=0,max=12"`
	Reset   ResetFrequency `json:"reset_frequency" validate:"required,oneof=NEVER DAILY MONTHLY YEARLY"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	items, err := h.repo.ListByAccount(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list numbering systems", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"numbering_systems": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())

	var req CreateSystemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sys := System{
		AccountID: accountID,
		Name:      req.Name,
		Pattern:   req.Pattern,
		Padding:   req.Padding,
		Reset:     req.Reset,
	}
	if err := sys.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Pattern", err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), &sys); err != nil {
		h.logger.Error("create numbering system", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sys)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "numbering system id must be an integer")
		return
	}

	sys, err := h.repo.GetByID(r.Context(), accountID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sys)
}

// preview renders the next few numbers the system would produce today
// without consuming the sequence.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	accountID, _ := shared.AccountFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "numbering system id must be an integer")
		return
	}

	sys, err := h.repo.GetByID(r.Context(), accountID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	now := time.Now().UTC()
	samples := make([]string, 0, 3)
	for i := int64(1); i <= 3; i++ {
		samples = append(samples, sys.RenderNumber(i, now))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"samples": samples})
}
