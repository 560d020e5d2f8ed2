package appointments

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// SaleGenerator turns an appointment into a sale. created is false when the
// appointment already had a sale.
type SaleGenerator interface {
	GenerateSale(ctx context.Context, appointmentID int64) (saleID int64, created bool, err error)
}

// Handler exposes appointments over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	sales   SaleGenerator
}

// NewHandler constructs the appointments handler. sales may be nil, in which
// case the sale route is not mounted.
func NewHandler(logger *slog.Logger, service *Service, sales SaleGenerator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, sales: sales}
}

// MountRoutes registers appointment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/actions/status", h.setStatus)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/lines", h.addLine)
		r.Delete("/{id}/lines/{lineID}", h.removeLine)
		if h.sales != nil {
			r.Post("/{id}/sale", h.generateSale)
		}
	})
}

type statusRequest struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Status Status  `json:"status" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	employeeID, err := httpx.QueryInt64(r, "employee_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	clientID, err := httpx.QueryInt64(r, "client_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.QueryTime(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryTime(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), Filter{
		Status:     Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		EmployeeID: employeeID,
		ClientID:   clientID,
		From:       from,
		To:         to,
		Page:       httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list appointments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Appointment]{Items: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create appointment", err)
		return
	}
	w.Header().Set("Location", "/api/appointments/"+strconv.FormatInt(a.ID, 10))
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get appointment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update appointment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete appointment", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in LineInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.AddLine(r.Context(), id, in)
	if err != nil {
		h.fail(w, "add appointment line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.PathID(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.RemoveLine(r.Context(), id, lineID)
	if err != nil {
		h.fail(w, "remove appointment line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.SetStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		h.fail(w, "set appointment status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) generateSale(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	saleID, created, err := h.sales.GenerateSale(r.Context(), id)
	if err != nil {
		h.fail(w, "generate sale", err)
		return
	}
	w.Header().Set("Location", "/api/sales/"+strconv.FormatInt(saleID, 10))
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"sale_id": saleID, "created": created})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
