package catalog

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// Handler exposes the service catalog over HTTP.
type Handler struct {
	logger  *slog.Logger
	manager *Manager
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, manager: manager}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/actions/active", h.setActive)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type activeRequest struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Active *bool   `json:"active" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	active, err := httpx.QueryBool(r, "active")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.manager.List(r.Context(), Filter{
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Category: r.URL.Query().Get("category"),
		Active:   active,
		Page:     httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list services", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Service]{Items: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in ServiceInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.manager.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create service", err)
		return
	}
	w.Header().Set("Location", "/api/services/"+strconv.FormatInt(s.ID, 10))
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get service", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ServiceInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.manager.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update service", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete service", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.manager.SetActive(r.Context(), req.IDs, *req.Active)
	if err != nil {
		h.fail(w, "set service active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
