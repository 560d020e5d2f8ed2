package sales

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// ReceiptRenderer produces a printable receipt for a sale.
type ReceiptRenderer interface {
	RenderReceipt(ctx context.Context, sale Sale) ([]byte, error)
}

// Handler exposes sales over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	receipts ReceiptRenderer
}

// NewHandler constructs the sales handler. receipts may be nil, in which
// case the receipt route is not mounted.
func NewHandler(logger *slog.Logger, service *Service, receipts ReceiptRenderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, receipts: receipts}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/actions/status", h.setStatus)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
		if h.receipts != nil {
			r.Get("/{id}/receipt.pdf", h.receipt)
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
	q := r.URL.Query()
	items, page, err := h.service.ListSales(r.Context(), Filter{
		Status:        Status(strings.TrimSpace(q.Get("status"))),
		PaymentMethod: PaymentMethod(strings.TrimSpace(q.Get("payment_method"))),
		EmployeeID:    employeeID,
		ClientID:      clientID,
		From:          from,
		To:            to,
		Page:          httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Sale]{Items: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.CreateSale(r.Context(), in)
	if err != nil {
		h.fail(w, "create sale", err)
		return
	}
	w.Header().Set("Location", saleLocation(sale.ID))
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteSale(r.Context(), id); err != nil {
		h.fail(w, "delete sale", err)
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
		h.fail(w, "set sale status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	pdf, err := h.receipts.RenderReceipt(r.Context(), sale)
	if err != nil {
		h.fail(w, "render receipt", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="receipt-`+strconv.FormatInt(id, 10)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func saleLocation(id int64) string {
	return "/api/sales/" + strconv.FormatInt(id, 10)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
