package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
	"github.com/barberia/backoffice/internal/sales"
)

// SaleReader loads a sale with its lines.
type SaleReader interface {
	GetSale(ctx context.Context, id int64) (sales.Sale, error)
}

// Handler serves report utilities: Gotenberg health and HTML receipt preview.
type Handler struct {
	client   *Client
	receipts *ReceiptRenderer
	sales    SaleReader
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, receipts *ReceiptRenderer, salesReader SaleReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, receipts: receipts, sales: salesReader, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/ping", h.ping)
	r.Get("/reports/receipts/{id}", h.preview)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "pdf renderer unreachable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.sales.GetSale(r.Context(), id)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("get sale for preview", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	html, err := h.receipts.RenderHTML(r.Context(), sale)
	if err != nil {
		h.logger.Error("render receipt preview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}
