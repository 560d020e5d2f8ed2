package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/appointments"
	audithttp "github.com/barberia/backoffice/internal/audit/http"
	"github.com/barberia/backoffice/internal/auth"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/dashboard"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/observability"
	"github.com/barberia/backoffice/internal/platform/httpx"
	"github.com/barberia/backoffice/internal/sales"
	"github.com/barberia/backoffice/internal/shared"
	"github.com/barberia/backoffice/internal/staff"
	"github.com/barberia/backoffice/jobs"
	"github.com/barberia/backoffice/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	SessionManager      *shared.SessionManager
	Pool                *pgxpool.Pool
	Metrics             *observability.Metrics
	AuthHandler         *auth.Handler
	ClientsHandler      *clients.Handler
	StaffHandler        *staff.Handler
	CatalogHandler      *catalog.Handler
	AppointmentsHandler *appointments.Handler
	InventoryHandler    *inventory.Handler
	SalesHandler        *sales.Handler
	AuditHandler        *audithttp.Handler
	DashboardHandler    *dashboard.Handler
	ReportHandler       *report.Handler
	JobHandler          *jobs.Handler
}

// NewRouter constructs the chi router. Everything under /api except login
// requires a staff session.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", healthHandler(params.Pool, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountPublic(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireStaff)
			if params.AuthHandler != nil {
				params.AuthHandler.MountRoutes(r)
			}
			if params.ClientsHandler != nil {
				params.ClientsHandler.MountRoutes(r)
			}
			if params.StaffHandler != nil {
				params.StaffHandler.MountRoutes(r)
			}
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountRoutes(r)
			}
			if params.AppointmentsHandler != nil {
				params.AppointmentsHandler.MountRoutes(r)
			}
			if params.InventoryHandler != nil {
				params.InventoryHandler.MountRoutes(r)
			}
			if params.SalesHandler != nil {
				params.SalesHandler.MountRoutes(r)
			}
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(r)
			}
			if params.DashboardHandler != nil {
				params.DashboardHandler.MountRoutes(r)
			}
			if params.ReportHandler != nil {
				params.ReportHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				params.JobHandler.MountRoutes(r)
			}
		})
	})

	return r
}

func healthHandler(pool *pgxpool.Pool, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				logger.Warn("health check: database unreachable", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "down"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
