package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/platform/db"
)

// Store exposes the aggregate queries behind the summary.
type Store interface {
	AppointmentsByStatus(ctx context.Context, from, to time.Time) (map[string]int, error)
	CompletedSales(ctx context.Context, from, to time.Time) (SalesTotals, error)
	StockCounts(ctx context.Context) (StockCounts, error)
	ActiveClients(ctx context.Context) (int, error)
}

// Repository runs the summary queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppointmentsByStatus counts appointments scheduled in [from, to).
func (r *Repository) AppointmentsByStatus(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
SELECT status, COUNT(*) FROM appointments
WHERE scheduled_at >= $1 AND scheduled_at < $2
GROUP BY status`, from, to)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", db.Classify(err))
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan appointment count: %w", db.Classify(err))
		}
		out[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count appointments: %w", db.Classify(err))
	}
	return out, nil
}

// CompletedSales sums completed sales sold in [from, to).
func (r *Repository) CompletedSales(ctx context.Context, from, to time.Time) (SalesTotals, error) {
	var t SalesTotals
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales
WHERE status = 'completed' AND sold_at >= $1 AND sold_at < $2`, from, to).Scan(&t.Count, &t.Revenue)
	if err != nil {
		return SalesTotals{}, fmt.Errorf("sum sales: %w", db.Classify(err))
	}
	return t, nil
}

// StockCounts counts active products in the low and out buckets.
func (r *Repository) StockCounts(ctx context.Context) (StockCounts, error) {
	var c StockCounts
	err := r.pool.QueryRow(ctx, `
SELECT
    COUNT(*) FILTER (WHERE stock_qty > 0 AND stock_qty <= min_stock),
    COUNT(*) FILTER (WHERE stock_qty <= 0)
FROM products WHERE active`).Scan(&c.Low, &c.Out)
	if err != nil {
		return StockCounts{}, fmt.Errorf("count stock: %w", db.Classify(err))
	}
	return c, nil
}

// ActiveClients counts active clients.
func (r *Repository) ActiveClients(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", db.Classify(err))
	}
	return n, nil
}
