package staff

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

// Repository persists employees and schedules in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Employee, error)
	Insert(ctx context.Context, e Employee) (int64, error)
	Update(ctx context.Context, e Employee) error
	Delete(ctx context.Context, id int64) error
	GetSchedule(ctx context.Context, employeeID, scheduleID int64) (Schedule, error)
	InsertSchedule(ctx context.Context, s Schedule) (int64, error)
	DeleteSchedule(ctx context.Context, scheduleID int64) error
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

const employeeColumns = `id, first_name, last_name, phone, email, role, specialty, hired_on, commission_percent, status`

func scanEmployee(row pgx.Row, extra ...any) (Employee, error) {
	var (
		e      Employee
		status string
	)
	dest := []any{&e.ID, &e.FirstName, &e.LastName, &e.Phone, &e.Email, &e.Role, &e.Specialty, &e.HiredOn, &e.CommissionPercent, &status}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Employee{}, err
	}
	e.Status = Status(status)
	return e, nil
}

// Get loads one employee.
func (r *Repository) Get(ctx context.Context, id int64) (Employee, error) {
	e, err := scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		return Employee{}, db.Classify(fmt.Errorf("staff: employee %d: %w", id, err))
	}
	return e, nil
}

// List returns a page of employees ordered by name.
func (r *Repository) List(ctx context.Context, f Filter) ([]Employee, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+employeeColumns+`, COUNT(*) OVER()
FROM employees
WHERE ($1::text IS NULL
       OR first_name ILIKE '%' || $1 || '%'
       OR last_name ILIKE '%' || $1 || '%'
       OR phone ILIKE '%' || $1 || '%')
  AND ($2::text IS NULL OR specialty = $2)
  AND ($3::text IS NULL OR status = $3)
ORDER BY last_name, first_name, id
LIMIT $4 OFFSET $5`, optionalText(f.Search), optionalText(f.Specialty), optionalText(string(f.Status)), f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("staff: list: %w", err))
	}
	defer rows.Close()
	var (
		out   []Employee
		total int
	)
	for rows.Next() {
		e, err := scanEmployee(rows, &total)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

// ListSchedules returns an employee's slots ordered by weekday and start.
func (r *Repository) ListSchedules(ctx context.Context, employeeID int64) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, employee_id, weekday, start_time, end_time, is_break
FROM employee_schedules WHERE employee_id = $1 ORDER BY weekday, start_time`, employeeID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("staff: list schedules: %w", err))
	}
	defer rows.Close()
	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, s)
	}
	return out, db.Classify(rows.Err())
}

func scanSchedule(row pgx.Row) (Schedule, error) {
	var (
		s          Schedule
		start, end pgtype.Time
	)
	if err := row.Scan(&s.ID, &s.EmployeeID, &s.Weekday, &start, &end, &s.IsBreak); err != nil {
		return Schedule{}, err
	}
	s.Start = TimeOfDay(start.Microseconds / 1_000_000)
	s.End = TimeOfDay(end.Microseconds / 1_000_000)
	return s, nil
}

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}
}

func (r *txRepo) Audit() audit.Appender { return r.audit }

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Employee, error) {
	e, err := scanEmployee(r.tx.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Employee{}, db.Classify(fmt.Errorf("staff: employee %d: %w", id, err))
	}
	return e, nil
}

func (r *txRepo) Insert(ctx context.Context, e Employee) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO employees
(first_name, last_name, phone, email, role, specialty, hired_on, commission_percent, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		e.FirstName, e.LastName, e.Phone, e.Email, e.Role, e.Specialty, e.HiredOn, e.CommissionPercent, string(e.Status)).Scan(&id)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("staff: insert: %w", err))
	}
	return id, nil
}

func (r *txRepo) Update(ctx context.Context, e Employee) error {
	_, err := r.tx.Exec(ctx, `UPDATE employees SET first_name = $2, last_name = $3, phone = $4, email = $5,
role = $6, specialty = $7, hired_on = $8, commission_percent = $9, status = $10 WHERE id = $1`,
		e.ID, e.FirstName, e.LastName, e.Phone, e.Email, e.Role, e.Specialty, e.HiredOn, e.CommissionPercent, string(e.Status))
	if err != nil {
		return db.Classify(fmt.Errorf("staff: update: %w", err))
	}
	return nil
}

func (r *txRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id); err != nil {
		return db.Classify(fmt.Errorf("staff: delete: %w", err))
	}
	return nil
}

func (r *txRepo) GetSchedule(ctx context.Context, employeeID, scheduleID int64) (Schedule, error) {
	s, err := scanSchedule(r.tx.QueryRow(ctx, `SELECT id, employee_id, weekday, start_time, end_time, is_break
FROM employee_schedules WHERE id = $1 AND employee_id = $2`, scheduleID, employeeID))
	if err != nil {
		return Schedule{}, db.Classify(fmt.Errorf("staff: schedule %d: %w", scheduleID, err))
	}
	return s, nil
}

func (r *txRepo) InsertSchedule(ctx context.Context, s Schedule) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO employee_schedules (employee_id, weekday, start_time, end_time, is_break)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.EmployeeID, s.Weekday, pgTime(s.Start), pgTime(s.End), s.IsBreak).Scan(&id)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("staff: insert schedule: %w", err))
	}
	return id, nil
}

func (r *txRepo) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM employee_schedules WHERE id = $1`, scheduleID); err != nil {
		return db.Classify(fmt.Errorf("staff: delete schedule: %w", err))
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
