package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/appointments"
	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/platform/db"
	"github.com/barberia/backoffice/internal/shared"
)

// Repository persists sales and sale lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Stock
// and Appointments share the caller's transaction.
type TxRepository interface {
	FindActiveByAppointment(ctx context.Context, appointmentID int64) (Sale, bool, error)
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	Lines(ctx context.Context, saleID int64) ([]Line, error)
	Insert(ctx context.Context, s Sale) (Sale, error)
	InsertLine(ctx context.Context, l Line) (int64, error)
	UpdateTotals(ctx context.Context, s Sale) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	ServiceForSale(ctx context.Context, serviceID int64) (catalog.Service, error)
	Appointments() appointments.Reader
	Stock() inventory.ProductTx
	Audit() audit.Appender
}

type txRepo struct {
	tx    pgx.Tx
	audit *audit.Store
	stock *inventory.TxStore
	appts *appointments.TxStore
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:    tx,
			audit: audit.NewStore(tx),
			stock: inventory.NewTxStore(tx),
			appts: appointments.NewTxStore(tx),
		})
	})
}

const saleColumns = `id, client_id, employee_id, appointment_id, sold_at, subtotal, tax, discount, total, payment_method, status, notes`

func scanSale(row pgx.Row, extra ...any) (Sale, error) {
	var (
		s              Sale
		method, status string
	)
	dest := []any{&s.ID, &s.ClientID, &s.EmployeeID, &s.AppointmentID, &s.SoldAt, &s.Subtotal, &s.Tax,
		&s.Discount, &s.Total, &method, &status, &s.Notes}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Sale{}, err
	}
	s.PaymentMethod = PaymentMethod(method)
	s.Status = Status(status)
	return s, nil
}

// Get loads a sale with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return Sale{}, db.Classify(fmt.Errorf("sales: sale %d: %w", id, err))
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return Sale{}, err
	}
	s.Lines = lines
	return s, nil
}

// FindActiveByAppointment returns the non-voided sale for the appointment
// with its lines.
func (r *Repository) FindActiveByAppointment(ctx context.Context, appointmentID int64) (Sale, bool, error) {
	s, found, err := findActive(ctx, r.pool, appointmentID)
	if err != nil || !found {
		return Sale{}, found, err
	}
	lines, err := queryLines(ctx, r.pool, s.ID)
	if err != nil {
		return Sale{}, false, err
	}
	s.Lines = lines
	return s, true, nil
}

// List returns a page of sales, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Sale, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+`, COUNT(*) OVER()
FROM sales
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR payment_method = $2)
  AND ($3::bigint IS NULL OR employee_id = $3)
  AND ($4::bigint IS NULL OR client_id = $4)
  AND ($5::timestamptz IS NULL OR sold_at >= $5)
  AND ($6::timestamptz IS NULL OR sold_at < $6)
ORDER BY sold_at DESC, id DESC
LIMIT $7 OFFSET $8`,
		optionalText(string(f.Status)), optionalText(string(f.PaymentMethod)),
		optionalInt(f.EmployeeID), optionalInt(f.ClientID), toPgTime(f.From), toPgTime(f.To),
		f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("sales: list: %w", err))
	}
	defer rows.Close()
	var (
		out   []Sale
		total int
	)
	for rows.Next() {
		s, err := scanSale(rows, &total)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

func findActive(ctx context.Context, q db.DBTX, appointmentID int64) (Sale, bool, error) {
	s, err := scanSale(q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales
WHERE appointment_id = $1 AND status <> 'voided'`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, false, nil
	}
	if err != nil {
		return Sale{}, false, db.Classify(fmt.Errorf("sales: sale for appointment %d: %w", appointmentID, err))
	}
	return s, true, nil
}

func queryLines(ctx context.Context, q db.DBTX, saleID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, line_type, product_id, service_id, quantity, unit_price, discount, line_subtotal
FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("sales: lines of %d: %w", saleID, err))
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var (
			l                    Line
			lineType             string
			productID, serviceID *int64
		)
		if err := rows.Scan(&l.ID, &l.SaleID, &lineType, &productID, &serviceID, &l.Quantity,
			&l.UnitPrice, &l.Discount, &l.LineSubtotal); err != nil {
			return nil, db.Classify(err)
		}
		item, err := itemFromColumns(lineType, productID, serviceID)
		if err != nil {
			return nil, err
		}
		l.Item = item
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return out, nil
}

func (r *txRepo) Audit() audit.Appender { return r.audit }

func (r *txRepo) Stock() inventory.ProductTx { return r.stock }

func (r *txRepo) Appointments() appointments.Reader { return r.appts }

func (r *txRepo) FindActiveByAppointment(ctx context.Context, appointmentID int64) (Sale, bool, error) {
	s, found, err := findActive(ctx, r.tx, appointmentID)
	if err != nil || !found {
		return Sale{}, found, err
	}
	lines, err := queryLines(ctx, r.tx, s.ID)
	if err != nil {
		return Sale{}, false, err
	}
	s.Lines = lines
	return s, true, nil
}

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Sale{}, db.Classify(fmt.Errorf("sales: sale %d: %w", id, err))
	}
	return s, nil
}

func (r *txRepo) Lines(ctx context.Context, saleID int64) ([]Line, error) {
	return queryLines(ctx, r.tx, saleID)
}

func (r *txRepo) Insert(ctx context.Context, s Sale) (Sale, error) {
	out, err := scanSale(r.tx.QueryRow(ctx, `INSERT INTO sales
(client_id, employee_id, appointment_id, sold_at, subtotal, tax, discount, total, payment_method, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+saleColumns,
		s.ClientID, s.EmployeeID, s.AppointmentID, s.SoldAt, s.Subtotal, s.Tax, s.Discount, s.Total,
		string(s.PaymentMethod), string(s.Status), s.Notes))
	if err != nil {
		return Sale{}, db.Classify(fmt.Errorf("sales: insert: %w", err))
	}
	return out, nil
}

func (r *txRepo) InsertLine(ctx context.Context, l Line) (int64, error) {
	lineType, productID, serviceID := itemColumns(l.Item)
	if lineType == "" {
		return 0, fmt.Errorf("%w: sale line without item", shared.ErrValidation)
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_lines
(sale_id, line_type, product_id, service_id, quantity, unit_price, discount, line_subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		l.SaleID, lineType, productID, serviceID, l.Quantity, l.UnitPrice, l.Discount, l.LineSubtotal).Scan(&id)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("sales: insert line: %w", err))
	}
	return id, nil
}

func (r *txRepo) UpdateTotals(ctx context.Context, s Sale) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET subtotal = $2, tax = $3, discount = $4, total = $5 WHERE id = $1`,
		s.ID, s.Subtotal, s.Tax, s.Discount, s.Total)
	if err != nil {
		return db.Classify(fmt.Errorf("sales: update totals: %w", err))
	}
	return nil
}

func (r *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if _, err := r.tx.Exec(ctx, `UPDATE sales SET status = $2 WHERE id = $1`, id, string(status)); err != nil {
		return db.Classify(fmt.Errorf("sales: update status: %w", err))
	}
	return nil
}

func (r *txRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return db.Classify(fmt.Errorf("sales: delete: %w", err))
	}
	return nil
}

func (r *txRepo) ServiceForSale(ctx context.Context, serviceID int64) (catalog.Service, error) {
	var svc catalog.Service
	err := r.tx.QueryRow(ctx, `SELECT id, name, description, category, duration_minutes, price, active
FROM services WHERE id = $1`, serviceID).
		Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Category, &svc.DurationMinutes, &svc.Price, &svc.Active)
	if err != nil {
		return catalog.Service{}, db.Classify(fmt.Errorf("sales: service %d: %w", serviceID, err))
	}
	return svc, nil
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
