package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/platform/httpx"
)

const (
	maxExportRows    = 5000
	defaultDateRange = 30 * 24 * time.Hour
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	List(ctx context.Context, f audit.Filter) (audit.Result, error)
	ExportCSV(ctx context.Context, f audit.Filter, maxRows int) ([]byte, error)
}

// Handler serves the read-only audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilter(r, false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.List(r.Context(), f)
	if err != nil {
		h.fail(w, "list audit entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilter(r, true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.service.ExportCSV(r.Context(), f, maxExportRows)
	if err != nil {
		h.fail(w, "export audit entries", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit.csv\"")
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilter reads table, operation, record_id, from, to and paging. Exports
// default to the last 30 days when no range is given.
func (h *Handler) parseFilter(r *http.Request, export bool) (audit.Filter, error) {
	q := r.URL.Query()
	recordID, err := httpx.QueryInt64(r, "record_id")
	if err != nil {
		return audit.Filter{}, err
	}
	from, err := httpx.QueryTime(r, "from")
	if err != nil {
		return audit.Filter{}, err
	}
	to, err := httpx.QueryTime(r, "to")
	if err != nil {
		return audit.Filter{}, err
	}
	if export && from.IsZero() && to.IsZero() {
		to = h.now().UTC()
		from = to.Add(-defaultDateRange)
	}
	return audit.Filter{
		Table:     strings.TrimSpace(q.Get("table")),
		Operation: audit.Operation(strings.ToUpper(strings.TrimSpace(q.Get("operation")))),
		RecordID:  recordID,
		From:      from,
		To:        to,
		Page:      httpx.PageFromQuery(r),
	}, nil
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
