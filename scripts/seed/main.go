// Command seed loads demo data for local development. It goes through the
// domain services so every row is audited like a real write.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barberia/backoffice/internal/app"
	"github.com/barberia/backoffice/internal/auth"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/platform/db"
	"github.com/barberia/backoffice/internal/shared"
	"github.com/barberia/backoffice/internal/staff"
)

func main() {
	if os.Getenv("SESSION_SECRET") == "" {
		_ = os.Setenv("SESSION_SECRET", "seed-only")
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fail("load config", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		fail("connect postgres", err)
	}
	defer pool.Close()
	if _, err := db.Migrate(ctx, pool); err != nil {
		fail("migrate", err)
	}

	services, err := app.NewServices(app.Deps{Config: cfg, Logger: logger, Pool: pool})
	if err != nil {
		fail("init services", err)
	}
	ctx = shared.ContextWithActor(ctx, shared.Actor{Username: "seed"})

	fmt.Println("→ Seeding staff user...")
	hash, err := auth.HashPassword(getenv("SEED_ADMIN_PASSWORD", "barberia123"))
	if err != nil {
		fail("hash password", err)
	}
	if _, err := auth.NewRepository(pool).CreateUser(ctx, "admin", hash, true); err != nil {
		fail("seed admin", err)
	}

	fmt.Println("→ Seeding employees...")
	for _, in := range []staff.Input{
		{FirstName: "Carlos", LastName: "Ruiz", Phone: "600100200", Role: "barber", Specialty: "fade", HiredOn: date(2022, 3, 1), CommissionPercent: decimal.RequireFromString("15.00")},
		{FirstName: "Lucía", LastName: "Martín", Phone: "600100201", Role: "stylist", Specialty: "color", HiredOn: date(2023, 9, 15), CommissionPercent: decimal.RequireFromString("12.50")},
	} {
		emp, err := services.Staff.Create(ctx, in)
		if skip(err) {
			continue
		}
		if err != nil {
			fail("seed employee", err)
		}
		for weekday := 1; weekday <= 5; weekday++ {
			slot := staff.Schedule{Weekday: weekday, Start: staff.NewTimeOfDay(9, 0, 0), End: staff.NewTimeOfDay(14, 0, 0)}
			if _, err := services.Staff.AddSchedule(ctx, emp.ID, slot); err != nil && !skip(err) {
				fail("seed schedule", err)
			}
			slot = staff.Schedule{Weekday: weekday, Start: staff.NewTimeOfDay(16, 0, 0), End: staff.NewTimeOfDay(20, 0, 0)}
			if _, err := services.Staff.AddSchedule(ctx, emp.ID, slot); err != nil && !skip(err) {
				fail("seed schedule", err)
			}
		}
	}

	fmt.Println("→ Seeding services...")
	for _, in := range []catalog.ServiceInput{
		{Name: "Corte de pelo", Category: "corte", DurationMinutes: 30, Price: decimal.RequireFromString("20.00")},
		{Name: "Arreglo de barba", Category: "barba", DurationMinutes: 20, Price: decimal.RequireFromString("15.00")},
		{Name: "Afeitado clásico", Category: "barba", DurationMinutes: 25, Price: decimal.RequireFromString("18.00")},
		{Name: "Corte infantil", Category: "corte", DurationMinutes: 20, Price: decimal.RequireFromString("14.00")},
	} {
		if _, err := services.Catalog.Create(ctx, in); err != nil && !skip(err) {
			fail("seed service", err)
		}
	}

	fmt.Println("→ Seeding products...")
	for _, in := range []inventory.ProductInput{
		{Name: "Pomada mate", Brand: "Reuzel", Category: "styling", SalePrice: decimal.RequireFromString("16.50"), CostPrice: decimal.RequireFromString("8.00"), MinStock: 5, Unit: "unit", InitialStock: 12},
		{Name: "Aceite de barba", Brand: "Proraso", Category: "barba", SalePrice: decimal.RequireFromString("12.00"), CostPrice: decimal.RequireFromString("5.50"), MinStock: 4, Unit: "unit", InitialStock: 3},
		{Name: "Cuchillas", Brand: "Derby", Category: "consumible", SalePrice: decimal.Zero, CostPrice: decimal.RequireFromString("0.20"), MinStock: 50, Unit: "unit", InitialStock: 200, ForSale: boolPtr(false)},
	} {
		if _, err := services.Inventory.CreateProduct(ctx, in); err != nil && !skip(err) {
			fail("seed product", err)
		}
	}

	fmt.Println("→ Seeding clients...")
	for _, in := range []clients.Input{
		{FirstName: "Javier", LastName: "López", Phone: "611222333"},
		{FirstName: "Marta", LastName: "García", Phone: "611222334", Preferences: "degradado bajo"},
	} {
		if _, err := services.Clients.Create(ctx, in); err != nil && !skip(err) {
			fail("seed client", err)
		}
	}

	fmt.Println("✓ Seed complete")
}

func skip(err error) bool {
	return errors.Is(err, shared.ErrConflict)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func boolPtr(v bool) *bool { return &v }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fail(msg string, err error) {
	slog.Default().Error(msg, slog.Any("error", err))
	os.Exit(1)
}
