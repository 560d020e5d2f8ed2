package dashboard

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
	"github.com/barberia/backoffice/internal/shared"
)

// Handler serves the dashboard counters.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers GET /dashboard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	day := h.service.Today()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.ParseInLocation(dayLayout, raw, h.service.loc)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: day must be YYYY-MM-DD", shared.ErrValidation))
			return
		}
		day = parsed
	}
	summary, err := h.service.Summary(r.Context(), day)
	if err != nil {
		h.logger.Error("dashboard summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
