package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barberia/backoffice/internal/audit"
)

// TxRepository is the transactional surface the ledger writes through. It is
// implemented by TxStore over a pgx.Tx, so callers in other packages can post
// movements inside their own transaction.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpdateStock(ctx context.Context, productID int64, qty int) error
	Audit() audit.Appender
}

// MovementMetrics observes ledger outcomes.
type MovementMetrics interface {
	ObserveMovement(movementType, result string)
}

// Ledger applies stock movements. Stock changes only through it.
type Ledger struct {
	recorder *audit.Recorder
	metrics  MovementMetrics
	now      func() time.Time
}

// NewLedger builds a ledger. metrics may be nil.
func NewLedger(recorder *audit.Recorder, metrics MovementMetrics) *Ledger {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	return &Ledger{recorder: recorder, metrics: metrics, now: time.Now}
}

// ApplyMovement validates the movement, locks the product row, applies the
// signed delta and records the movement with its audit trail. A movement that
// would leave stock below zero returns ErrInsufficientStock and writes nothing.
func (l *Ledger) ApplyMovement(ctx context.Context, tx TxRepository, in MovementInput) (Movement, error) {
	m, err := l.apply(ctx, tx, in)
	l.observe(in.Type, err)
	return m, err
}

func (l *Ledger) apply(ctx context.Context, tx TxRepository, in MovementInput) (Movement, error) {
	if !in.Type.Valid() {
		return Movement{}, fmt.Errorf("%w %q", ErrUnknownMovementType, in.Type)
	}
	if in.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}

	product, err := tx.GetProductForUpdate(ctx, in.ProductID)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: load product %d: %w", in.ProductID, err)
	}

	after := product.StockQty + in.Type.Sign()*in.Quantity
	if after < 0 {
		return Movement{}, fmt.Errorf("%w: product %d has %d, %s of %d requested",
			ErrInsufficientStock, product.ID, product.StockQty, in.Type, in.Quantity)
	}

	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		ref = "MOV-" + strings.ToUpper(uuid.NewString()[:8])
	}
	m := Movement{
		ProductID:   product.ID,
		Type:        in.Type,
		Quantity:    in.Quantity,
		StockBefore: product.StockQty,
		StockAfter:  after,
		MovedAt:     l.now().UTC(),
		EmployeeID:  in.EmployeeID,
		SaleID:      in.SaleID,
		Reason:      strings.TrimSpace(in.Reason),
		Reference:   ref,
	}
	id, err := tx.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	m.ID = id

	if err := tx.UpdateStock(ctx, product.ID, after); err != nil {
		return Movement{}, fmt.Errorf("inventory: update stock: %w", err)
	}

	updated := product
	updated.StockQty = after
	if err := l.recorder.Record(ctx, tx.Audit(), audit.Change{
		Table: audit.TableInventoryMovements, Operation: audit.OpInsert, RecordID: m.ID, New: m,
	}); err != nil {
		return Movement{}, err
	}
	if err := l.recorder.Record(ctx, tx.Audit(), audit.Change{
		Table: audit.TableProducts, Operation: audit.OpUpdate, RecordID: product.ID, Old: product, New: updated,
	}); err != nil {
		return Movement{}, err
	}
	return m, nil
}

func (l *Ledger) observe(t MovementType, err error) {
	if l.metrics == nil {
		return
	}
	result := "applied"
	switch {
	case err == nil:
	case IsInsufficientStock(err):
		result = "insufficient_stock"
	default:
		result = "error"
	}
	l.metrics.ObserveMovement(string(t), result)
}
