package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/platform/db"
)

// Repository persists products and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductTx extends the ledger surface with product writes.
type ProductTx interface {
	TxRepository
	GetProduct(ctx context.Context, id int64) (Product, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// TxStore implements ProductTx over a pgx transaction.
type TxStore struct {
	tx    pgx.Tx
	audit *audit.Store
}

// NewTxStore binds the inventory statements to tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx, audit: audit.NewStore(tx)}
}

var _ ProductTx = (*TxStore)(nil)

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, ProductTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

const productColumns = `id, name, brand, category, description, sale_price, cost_price, stock_qty, min_stock, unit, for_sale, active`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.SalePrice, &p.CostPrice,
		&p.StockQty, &p.MinStock, &p.Unit, &p.ForSale, &p.Active)
	return p, err
}

// GetProduct loads one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return Product{}, db.Classify(fmt.Errorf("inventory: product %d: %w", id, err))
	}
	return p, nil
}

const listProductsSQL = `SELECT ` + productColumns + `, COUNT(*) OVER() AS total
FROM products
WHERE ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%')
  AND ($2::text IS NULL OR category = $2)
  AND ($3::text IS NULL OR brand = $3)
  AND ($4::boolean IS NULL OR active = $4)
  AND ($5::text IS NULL
       OR ($5 = 'out' AND stock_qty <= 0)
       OR ($5 = 'low' AND stock_qty > 0 AND stock_qty <= min_stock)
       OR ($5 = 'ok' AND stock_qty > min_stock))
ORDER BY name
LIMIT $6 OFFSET $7`

// ListProducts returns a page of products and the total match count.
func (r *Repository) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int, error) {
	var active pgtype.Bool
	if f.Active != nil {
		active = pgtype.Bool{Bool: *f.Active, Valid: true}
	}
	rows, err := r.pool.Query(ctx, listProductsSQL,
		optionalText(f.Search), optionalText(f.Category), optionalText(f.Brand), active,
		optionalText(string(f.Level)), f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("inventory: list products: %w", err))
	}
	defer rows.Close()

	var (
		out   []Product
		total int
	)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.SalePrice, &p.CostPrice,
			&p.StockQty, &p.MinStock, &p.Unit, &p.ForSale, &p.Active, &total); err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

// LowStock returns active products at or below their minimum, emptiest first.
func (r *Repository) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE active AND stock_qty <= min_stock
ORDER BY stock_qty, name`)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("inventory: low stock: %w", err))
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, p)
	}
	return out, db.Classify(rows.Err())
}

const movementColumns = `id, product_id, movement_type, quantity, stock_before, stock_after, moved_at, employee_id, sale_id, reason, reference`

const listMovementsSQL = `SELECT ` + movementColumns + `, COUNT(*) OVER() AS total
FROM inventory_movements
WHERE ($1::bigint IS NULL OR product_id = $1)
  AND ($2::text IS NULL OR movement_type = $2)
  AND ($3::timestamptz IS NULL OR moved_at >= $3)
  AND ($4::timestamptz IS NULL OR moved_at < $4)
ORDER BY moved_at DESC, id DESC
LIMIT $5 OFFSET $6`

// ListMovements returns a page of movements, newest first.
func (r *Repository) ListMovements(ctx context.Context, f MovementFilter) ([]Movement, int, error) {
	var productID pgtype.Int8
	if f.ProductID != nil {
		productID = pgtype.Int8{Int64: *f.ProductID, Valid: true}
	}
	rows, err := r.pool.Query(ctx, listMovementsSQL,
		productID, optionalText(string(f.Type)), toPgTime(f.From), toPgTime(f.To),
		f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("inventory: list movements: %w", err))
	}
	defer rows.Close()

	var (
		out   []Movement
		total int
	)
	for rows.Next() {
		var (
			m  Movement
			mt string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &mt, &m.Quantity, &m.StockBefore, &m.StockAfter, &m.MovedAt,
			&m.EmployeeID, &m.SaleID, &m.Reason, &m.Reference, &total); err != nil {
			return nil, 0, db.Classify(err)
		}
		m.Type = MovementType(mt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return out, total, nil
}

// Audit returns the appender bound to the transaction.
func (s *TxStore) Audit() audit.Appender {
	return s.audit
}

// GetProduct loads a product inside the transaction without locking it.
func (s *TxStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(s.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return Product{}, db.Classify(fmt.Errorf("inventory: product %d: %w", id, err))
	}
	return p, nil
}

// GetProductForUpdate loads and row-locks a product until the transaction ends.
func (s *TxStore) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(s.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Product{}, db.Classify(fmt.Errorf("inventory: product %d: %w", id, err))
	}
	return p, nil
}

// InsertMovement appends a ledger row.
func (s *TxStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_movements
(product_id, movement_type, quantity, stock_before, stock_after, moved_at, employee_id, sale_id, reason, reference)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
		m.ProductID, string(m.Type), m.Quantity, m.StockBefore, m.StockAfter, m.MovedAt,
		m.EmployeeID, m.SaleID, m.Reason, m.Reference,
	).Scan(&id)
	if err != nil {
		return 0, db.Classify(err)
	}
	return id, nil
}

// UpdateStock sets the cached stock quantity.
func (s *TxStore) UpdateStock(ctx context.Context, productID int64, qty int) error {
	tag, err := s.tx.Exec(ctx, `UPDATE products SET stock_qty = $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows)
	}
	return nil
}

// InsertProduct creates a product with zero stock.
func (s *TxStore) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO products
(name, brand, category, description, sale_price, cost_price, stock_qty, min_stock, unit, for_sale, active)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10)
RETURNING id`,
		p.Name, p.Brand, p.Category, p.Description, p.SalePrice, p.CostPrice, p.MinStock, p.Unit, p.ForSale, p.Active,
	).Scan(&id)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("inventory: insert product: %w", err))
	}
	return id, nil
}

// UpdateProduct writes every attribute except stock.
func (s *TxStore) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := s.tx.Exec(ctx, `UPDATE products SET
name = $2, brand = $3, category = $4, description = $5, sale_price = $6, cost_price = $7,
min_stock = $8, unit = $9, for_sale = $10, active = $11
WHERE id = $1`,
		p.ID, p.Name, p.Brand, p.Category, p.Description, p.SalePrice, p.CostPrice, p.MinStock, p.Unit, p.ForSale, p.Active)
	if err != nil {
		return db.Classify(fmt.Errorf("inventory: update product: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows)
	}
	return nil
}

// DeleteProduct removes a product. Products with movements or sale lines are
// protected by ON DELETE RESTRICT.
func (s *TxStore) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return db.Classify(fmt.Errorf("inventory: delete product: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows)
	}
	return nil
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
