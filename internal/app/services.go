package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/barberia/backoffice/internal/appointments"
	"github.com/barberia/backoffice/internal/audit"
	audithttp "github.com/barberia/backoffice/internal/audit/http"
	"github.com/barberia/backoffice/internal/auth"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/dashboard"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/observability"
	"github.com/barberia/backoffice/internal/sales"
	"github.com/barberia/backoffice/internal/shared"
	"github.com/barberia/backoffice/internal/staff"
	"github.com/barberia/backoffice/jobs"
	"github.com/barberia/backoffice/report"
)

// Deps are the process level resources every service is built from.
type Deps struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// Services holds the wired domain services.
type Services struct {
	Sessions     *shared.SessionManager
	Auth         *auth.Service
	Clients      *clients.Service
	Staff        *staff.Service
	Catalog      *catalog.Manager
	Appointments *appointments.Service
	Inventory    *inventory.Service
	Sales        *sales.Service
	Audit        *audit.Service
	Dashboard    *dashboard.Service
	PDF          *report.Client
	Receipts     *report.ReceiptRenderer
}

// NewServices builds repositories and services. Nothing is registered
// globally; callers pass the result on.
func NewServices(d Deps) (*Services, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	loc, err := d.Config.Location()
	if err != nil {
		return nil, err
	}
	recorder := audit.NewRecorder()

	dash := dashboard.NewService(
		dashboard.NewRepository(d.Pool),
		dashboard.NewCache(d.Redis, d.Config.DashboardCacheTTL),
		loc,
		d.Logger.With(slog.String("component", "dashboard")),
	)
	ledger := inventory.NewLedger(recorder, d.Metrics)
	catalogManager := catalog.NewManager(catalog.NewRepository(d.Pool), recorder)
	inventoryService := inventory.NewService(inventory.NewRepository(d.Pool), ledger, recorder, dash, d.Logger)

	pdf := report.NewClient(d.Config.GotenbergURL, report.WithPaper(report.PaperByName(d.Config.ReceiptPaper)))
	receipts, err := report.NewReceiptRenderer(pdf, itemNames{catalog: catalogManager, inventory: inventoryService}, report.ReceiptConfig{
		Shop:     d.Config.ShopName,
		Locale:   d.Config.ReceiptLocale,
		Location: loc,
	}, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("init receipts: %w", err)
	}

	return &Services{
		Sessions:     shared.NewSessionManager(d.Redis, d.Config.SessionCookie, d.Config.SessionSecret, d.Config.SessionTTL, d.Config.IsProduction()),
		Auth:         auth.NewService(auth.NewRepository(d.Pool), d.Logger),
		Clients:      clients.NewService(clients.NewRepository(d.Pool), recorder),
		Staff:        staff.NewService(staff.NewRepository(d.Pool), recorder),
		Catalog:      catalogManager,
		Appointments: appointments.NewService(appointments.NewRepository(d.Pool), recorder, dash, d.Logger),
		Inventory:    inventoryService,
		Sales:        sales.NewService(sales.NewRepository(d.Pool), ledger, recorder, dash, d.Metrics, d.Logger),
		Audit:        audit.NewService(audit.NewStore(d.Pool)),
		Dashboard:    dash,
		PDF:          pdf,
		Receipts:     receipts,
	}, nil
}

// Router builds the HTTP handler tree over the services. inspector may be nil.
func (s *Services) Router(d Deps, inspector jobs.QueueInspector) http.Handler {
	return NewRouter(RouterParams{
		Logger:              d.Logger,
		Config:              d.Config,
		SessionManager:      s.Sessions,
		Pool:                d.Pool,
		Metrics:             d.Metrics,
		AuthHandler:         auth.NewHandler(d.Logger, s.Auth, s.Sessions),
		ClientsHandler:      clients.NewHandler(d.Logger, s.Clients),
		StaffHandler:        staff.NewHandler(d.Logger, s.Staff),
		CatalogHandler:      catalog.NewHandler(d.Logger, s.Catalog),
		AppointmentsHandler: appointments.NewHandler(d.Logger, s.Appointments, s.Sales),
		InventoryHandler:    inventory.NewHandler(d.Logger, s.Inventory),
		SalesHandler:        sales.NewHandler(d.Logger, s.Sales, s.Receipts),
		AuditHandler:        audithttp.NewHandler(d.Logger, s.Audit),
		DashboardHandler:    dashboard.NewHandler(d.Logger, s.Dashboard),
		ReportHandler:       report.NewHandler(s.PDF, s.Receipts, s.Sales, d.Logger),
		JobHandler:          jobs.NewHandler(inspector, d.Logger),
	})
}

type itemNames struct {
	catalog   *catalog.Manager
	inventory *inventory.Service
}

func (n itemNames) ServiceName(ctx context.Context, id int64) (string, error) {
	s, err := n.catalog.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}

func (n itemNames) ProductName(ctx context.Context, id int64) (string, error) {
	p, err := n.inventory.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
