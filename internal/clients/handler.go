package clients

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// Handler exposes the client register over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the clients handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
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
	items, page, err := h.service.List(r.Context(), Filter{
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Active: active,
		Page:   httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list clients", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Client]{Items: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create client", err)
		return
	}
	w.Header().Set("Location", "/api/clients/"+strconv.FormatInt(c.ID, 10))
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete client", err)
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
	n, err := h.service.SetActive(r.Context(), req.IDs, *req.Active)
	if err != nil {
		h.fail(w, "set client active", err)
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
