package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/platform/db"
)

// Repository persists services in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the manager.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Service, error)
	Insert(ctx context.Context, s Service) (int64, error)
	Update(ctx context.Context, s Service) error
	Delete(ctx context.Context, id int64) error
	Audit() audit.Appender
}

type txRepo struct {
	tx    pgx.Tx
	audit *audit.Store
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, audit: audit.NewStore(tx)})
	})
}

const serviceColumns = `id, name, description, category, duration_minutes, price, active`

func scanService(row pgx.Row) (Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.DurationMinutes, &s.Price, &s.Active)
	return s, err
}

// Get loads one service.
func (r *Repository) Get(ctx context.Context, id int64) (Service, error) {
	s, err := scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return Service{}, db.Classify(fmt.Errorf("catalog: service %d: %w", id, err))
	}
	return s, nil
}

// List returns a page of services ordered by category and name.
func (r *Repository) List(ctx context.Context, f Filter) ([]Service, int, error) {
	var active pgtype.Bool
	if f.Active != nil {
		active = pgtype.Bool{Bool: *f.Active, Valid: true}
	}
	rows, err := r.pool.Query(ctx, `SELECT `+serviceColumns+`, COUNT(*) OVER()
FROM services
WHERE ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
  AND ($2::text IS NULL OR category = $2)
  AND ($3::boolean IS NULL OR active = $3)
ORDER BY category, name
LIMIT $4 OFFSET $5`, optionalText(f.Search), optionalText(f.Category), active, f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("catalog: list: %w", err))
	}
	defer rows.Close()
	var (
		out   []Service
		total int
	)
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.DurationMinutes, &s.Price, &s.Active, &total); err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

func (r *txRepo) Audit() audit.Appender { return r.audit }

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Service, error) {
	s, err := scanService(r.tx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Service{}, db.Classify(fmt.Errorf("catalog: service %d: %w", id, err))
	}
	return s, nil
}

func (r *txRepo) Insert(ctx context.Context, s Service) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO services (name, description, category, duration_minutes, price, active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.Name, s.Description, s.Category, s.DurationMinutes, s.Price, s.Active).Scan(&id)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("catalog: insert: %w", err))
	}
	return id, nil
}

func (r *txRepo) Update(ctx context.Context, s Service) error {
	_, err := r.tx.Exec(ctx, `UPDATE services SET name = $2, description = $3, category = $4,
duration_minutes = $5, price = $6, active = $7 WHERE id = $1`,
		s.ID, s.Name, s.Description, s.Category, s.DurationMinutes, s.Price, s.Active)
	if err != nil {
		return db.Classify(fmt.Errorf("catalog: update: %w", err))
	}
	return nil
}

func (r *txRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM services WHERE id = $1`, id); err != nil {
		return db.Classify(fmt.Errorf("catalog: delete: %w", err))
	}
	return nil
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
