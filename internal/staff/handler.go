package staff

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// Handler exposes employees and schedules over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the staff handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/actions/status", h.setStatus)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/schedules", h.listSchedules)
		r.Post("/{id}/schedules", h.addSchedule)
		r.Delete("/{id}/schedules/{scheduleID}", h.deleteSchedule)
	})
}

type statusRequest struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Status Status  `json:"status" validate:"required"`
}

type scheduleRequest struct {
	Weekday int       `json:"weekday" validate:"required"`
	Start   TimeOfDay `json:"start"`
	End     TimeOfDay `json:"end"`
	IsBreak bool      `json:"is_break"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, page, err := h.service.List(r.Context(), Filter{
		Search:    strings.TrimSpace(q.Get("q")),
		Specialty: strings.TrimSpace(q.Get("specialty")),
		Status:    Status(strings.TrimSpace(q.Get("status"))),
		Page:      httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list employees", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Employee]{Items: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create employee", err)
		return
	}
	w.Header().Set("Location", "/api/employees/"+strconv.FormatInt(e.ID, 10))
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
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
	e, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete employee", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.SetStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		h.fail(w, "set employee status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListSchedules(r.Context(), id)
	if err != nil {
		h.fail(w, "list schedules", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) addSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req scheduleRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	slot, err := h.service.AddSchedule(r.Context(), id, Schedule{
		Weekday: req.Weekday,
		Start:   req.Start,
		End:     req.End,
		IsBreak: req.IsBreak,
	})
	if err != nil {
		h.fail(w, "add schedule", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, slot)
}

func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scheduleID, err := httpx.PathID(r, "scheduleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteSchedule(r.Context(), id, scheduleID); err != nil {
		h.fail(w, "delete schedule", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
