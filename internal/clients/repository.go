package clients

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

// Repository persists clients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Client, error)
	Insert(ctx context.Context, c Client) (Client, error)
	Update(ctx context.Context, c Client) error
	Delete(ctx context.Context, id int64) error
	Audit() audit.Appender
}

type txRepo struct {
	tx    pgx.Tx
	audit *audit.Store
}

// NewTxStore exposes client writes inside a transaction owned by another
// package.
func NewTxStore(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx, audit: audit.NewStore(tx)}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, audit: audit.NewStore(tx)})
	})
}

const clientColumns = `id, first_name, last_name, phone, email, birth_date, address, preferences, notes, registered_at, last_visit_at, active`

func scanClient(row pgx.Row, extra ...any) (Client, error) {
	var c Client
	dest := []any{&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.BirthDate, &c.Address,
		&c.Preferences, &c.Notes, &c.RegisteredAt, &c.LastVisitAt, &c.Active}
	err := row.Scan(append(dest, extra...)...)
	return c, err
}

// Get loads one client.
func (r *Repository) Get(ctx context.Context, id int64) (Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return Client{}, db.Classify(fmt.Errorf("clients: client %d: %w", id, err))
	}
	return c, nil
}

// List returns a page of clients ordered by name.
func (r *Repository) List(ctx context.Context, f Filter) ([]Client, int, error) {
	var active pgtype.Bool
	if f.Active != nil {
		active = pgtype.Bool{Bool: *f.Active, Valid: true}
	}
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+`, COUNT(*) OVER()
FROM clients
WHERE ($1::text IS NULL
       OR first_name ILIKE '%' || $1 || '%'
       OR last_name ILIKE '%' || $1 || '%'
       OR phone ILIKE '%' || $1 || '%'
       OR email ILIKE '%' || $1 || '%')
  AND ($2::boolean IS NULL OR active = $2)
ORDER BY last_name, first_name, id
LIMIT $3 OFFSET $4`, optionalText(f.Search), active, f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("clients: list: %w", err))
	}
	defer rows.Close()
	var (
		out   []Client
		total int
	)
	for rows.Next() {
		c, err := scanClient(rows, &total)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

func (r *txRepo) Audit() audit.Appender { return r.audit }

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Client, error) {
	c, err := scanClient(r.tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Client{}, db.Classify(fmt.Errorf("clients: client %d: %w", id, err))
	}
	return c, nil
}

func (r *txRepo) Insert(ctx context.Context, c Client) (Client, error) {
	out, err := scanClient(r.tx.QueryRow(ctx, `INSERT INTO clients
(first_name, last_name, phone, email, birth_date, address, preferences, notes, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+clientColumns,
		c.FirstName, c.LastName, c.Phone, c.Email, c.BirthDate, c.Address, c.Preferences, c.Notes, c.Active))
	if err != nil {
		return Client{}, db.Classify(fmt.Errorf("clients: insert: %w", err))
	}
	return out, nil
}

func (r *txRepo) Update(ctx context.Context, c Client) error {
	_, err := r.tx.Exec(ctx, `UPDATE clients SET first_name = $2, last_name = $3, phone = $4, email = $5,
birth_date = $6, address = $7, preferences = $8, notes = $9, last_visit_at = $10, active = $11
WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.Phone, c.Email, c.BirthDate, c.Address, c.Preferences, c.Notes, c.LastVisitAt, c.Active)
	if err != nil {
		return db.Classify(fmt.Errorf("clients: update: %w", err))
	}
	return nil
}

func (r *txRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id); err != nil {
		return db.Classify(fmt.Errorf("clients: delete: %w", err))
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
