package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/platform/db"
)

// Repository persists appointments and their lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Reader is the read side used by other packages inside their own
// transactions.
type Reader interface {
	GetForUpdate(ctx context.Context, id int64) (Appointment, error)
	Lines(ctx context.Context, appointmentID int64) ([]Line, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	Reader
	Insert(ctx context.Context, a Appointment) (Appointment, error)
	Update(ctx context.Context, a Appointment) error
	Delete(ctx context.Context, id int64) error
	ServiceForBooking(ctx context.Context, serviceID int64) (catalog.Service, error)
	GetLine(ctx context.Context, appointmentID, lineID int64) (Line, error)
	InsertLine(ctx context.Context, l Line) (int64, error)
	DeleteLine(ctx context.Context, lineID int64) error
	Clients() clients.TxRepository
	Audit() audit.Appender
}

// TxStore implements TxRepository over a pgx transaction.
type TxStore struct {
	tx    pgx.Tx
	audit *audit.Store
}

// NewTxStore binds the appointment statements to tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx, audit: audit.NewStore(tx)}
}

var _ TxRepository = (*TxStore)(nil)

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

const appointmentColumns = `id, client_id, employee_id, scheduled_at, total_duration, status, notes, created_at`

func scanAppointment(row pgx.Row, extra ...any) (Appointment, error) {
	var (
		a      Appointment
		status string
	)
	dest := []any{&a.ID, &a.ClientID, &a.EmployeeID, &a.ScheduledAt, &a.TotalDuration, &status, &a.Notes, &a.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Appointment{}, err
	}
	a.Status = Status(status)
	return a, nil
}

// Get loads an appointment with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return Appointment{}, db.Classify(fmt.Errorf("appointments: appointment %d: %w", id, err))
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return Appointment{}, err
	}
	a.Lines = lines
	return a, nil
}

// List returns a page of appointments ordered by schedule.
func (r *Repository) List(ctx context.Context, f Filter) ([]Appointment, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`, COUNT(*) OVER()
FROM appointments
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::bigint IS NULL OR employee_id = $2)
  AND ($3::bigint IS NULL OR client_id = $3)
  AND ($4::timestamptz IS NULL OR scheduled_at >= $4)
  AND ($5::timestamptz IS NULL OR scheduled_at < $5)
ORDER BY scheduled_at DESC, id DESC
LIMIT $6 OFFSET $7`,
		optionalText(string(f.Status)), optionalInt(f.EmployeeID), optionalInt(f.ClientID),
		toPgTime(f.From), toPgTime(f.To), f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("appointments: list: %w", err))
	}
	defer rows.Close()
	var (
		out   []Appointment
		total int
	)
	for rows.Next() {
		a, err := scanAppointment(rows, &total)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

func queryLines(ctx context.Context, q db.DBTX, appointmentID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, appointment_id, service_id, applied_price, duration_minutes, notes
FROM appointment_lines WHERE appointment_id = $1 ORDER BY id`, appointmentID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("appointments: lines of %d: %w", appointmentID, err))
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.AppointmentID, &l.ServiceID, &l.AppliedPrice, &l.DurationMinutes, &l.Notes); err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return out, nil
}

// Audit returns the appender bound to the transaction.
func (s *TxStore) Audit() audit.Appender { return s.audit }

// Clients exposes client writes in the same transaction.
func (s *TxStore) Clients() clients.TxRepository { return clients.NewTxStore(s.tx) }

// GetForUpdate locks the appointment row.
func (s *TxStore) GetForUpdate(ctx context.Context, id int64) (Appointment, error) {
	a, err := scanAppointment(s.tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Appointment{}, db.Classify(fmt.Errorf("appointments: appointment %d: %w", id, err))
	}
	return a, nil
}

// Lines lists the lines of an appointment.
func (s *TxStore) Lines(ctx context.Context, appointmentID int64) ([]Line, error) {
	return queryLines(ctx, s.tx, appointmentID)
}

func (s *TxStore) Insert(ctx context.Context, a Appointment) (Appointment, error) {
	out, err := scanAppointment(s.tx.QueryRow(ctx, `INSERT INTO appointments
(client_id, employee_id, scheduled_at, total_duration, status, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+appointmentColumns,
		a.ClientID, a.EmployeeID, a.ScheduledAt, a.TotalDuration, string(a.Status), a.Notes))
	if err != nil {
		return Appointment{}, db.Classify(fmt.Errorf("appointments: insert: %w", err))
	}
	return out, nil
}

func (s *TxStore) Update(ctx context.Context, a Appointment) error {
	_, err := s.tx.Exec(ctx, `UPDATE appointments SET client_id = $2, employee_id = $3, scheduled_at = $4,
total_duration = $5, status = $6, notes = $7 WHERE id = $1`,
		a.ID, a.ClientID, a.EmployeeID, a.ScheduledAt, a.TotalDuration, string(a.Status), a.Notes)
	if err != nil {
		return db.Classify(fmt.Errorf("appointments: update: %w", err))
	}
	return nil
}

func (s *TxStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return db.Classify(fmt.Errorf("appointments: delete: %w", err))
	}
	return nil
}

// ServiceForBooking reads a catalog service and holds a share lock so its
// price cannot change while the line is written.
func (s *TxStore) ServiceForBooking(ctx context.Context, serviceID int64) (catalog.Service, error) {
	var svc catalog.Service
	err := s.tx.QueryRow(ctx, `SELECT id, name, description, category, duration_minutes, price, active
FROM services WHERE id = $1 FOR SHARE`, serviceID).
		Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Category, &svc.DurationMinutes, &svc.Price, &svc.Active)
	if err != nil {
		return catalog.Service{}, db.Classify(fmt.Errorf("appointments: service %d: %w", serviceID, err))
	}
	return svc, nil
}

func (s *TxStore) GetLine(ctx context.Context, appointmentID, lineID int64) (Line, error) {
	var l Line
	err := s.tx.QueryRow(ctx, `SELECT id, appointment_id, service_id, applied_price, duration_minutes, notes
FROM appointment_lines WHERE id = $1 AND appointment_id = $2`, lineID, appointmentID).
		Scan(&l.ID, &l.AppointmentID, &l.ServiceID, &l.AppliedPrice, &l.DurationMinutes, &l.Notes)
	if err != nil {
		return Line{}, db.Classify(fmt.Errorf("appointments: line %d: %w", lineID, err))
	}
	return l, nil
}

func (s *TxStore) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO appointment_lines (appointment_id, service_id, applied_price, duration_minutes, notes)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		l.AppointmentID, l.ServiceID, l.AppliedPrice, l.DurationMinutes, l.Notes).Scan(&id)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("appointments: insert line: %w", err))
	}
	return id, nil
}

func (s *TxStore) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM appointment_lines WHERE id = $1`, lineID); err != nil {
		return db.Classify(fmt.Errorf("appointments: delete line: %w", err))
	}
	return nil
}

func optionalInt(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
