package jobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// QueueInspector is the slice of asynq.Inspector used for stats.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

// ReadQueueStats reads the default queue. A nil inspector yields empty stats.
func ReadQueueStats(inspector QueueInspector) (QueueStats, error) {
	stats := QueueStats{Queue: QueueDefault}
	if inspector == nil {
		return stats, nil
	}
	info, err := inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		return stats, err
	}
	if info == nil {
		return stats, nil
	}
	stats.Pending = int(info.Pending)
	stats.Active = int(info.Active)
	stats.Scheduled = int(info.Scheduled)
	stats.Retry = int(info.Retry)
	stats.Archived = int(info.Archived)
	stats.Processed = int(info.Processed)
	stats.Failed = int(info.Failed)
	return stats, nil
}

// Handler exposes queue health over HTTP.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler builds the jobs handler. inspector may be nil when Redis is not
// reachable at startup.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes registers GET /jobs/health.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	stats, err := ReadQueueStats(h.inspector)
	if err != nil {
		h.logger.Warn("read queue stats", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "job queue could not be inspected")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
