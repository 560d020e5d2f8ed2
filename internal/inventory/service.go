package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, ProductTx) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, int, error)
	ListMovements(ctx context.Context, f MovementFilter) ([]Movement, int, error)
	LowStock(ctx context.Context) ([]Product, error)
}

// Invalidator is notified after stock changes commit.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates product maintenance and stock movements.
type Service struct {
	repo        RepositoryPort
	ledger      *Ledger
	recorder    *audit.Recorder
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service. invalidator may be nil.
func NewService(repo RepositoryPort, ledger *Ledger, recorder *audit.Recorder, invalidator Invalidator, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	if ledger == nil {
		ledger = NewLedger(recorder, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, recorder: recorder, invalidator: invalidator, logger: logger}
}

// Ledger exposes the ledger so other services can post movements in their
// own transactions.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// ApplyMovement posts a single movement in its own transaction.
func (s *Service) ApplyMovement(ctx context.Context, in MovementInput) (Movement, error) {
	var out Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx ProductTx) error {
		m, err := s.ledger.ApplyMovement(ctx, tx, in)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	s.invalidate(ctx)
	return out, nil
}

// CreateProduct inserts a product. A positive InitialStock is recorded as an
// "in" movement in the same transaction.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	p := in.apply(Product{ForSale: true, Active: true})
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx ProductTx) error {
		id, err := tx.InsertProduct(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{
			Table: audit.TableProducts, Operation: audit.OpInsert, RecordID: id, New: p,
		}); err != nil {
			return err
		}
		if in.InitialStock > 0 {
			m, err := s.ledger.ApplyMovement(ctx, tx, MovementInput{
				ProductID: id,
				Type:      MovementIn,
				Quantity:  in.InitialStock,
				Reason:    "initial stock",
			})
			if err != nil {
				return err
			}
			p.StockQty = m.StockAfter
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

// UpdateProduct changes product attributes. Stock is untouched.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	var out Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx ProductTx) error {
		before, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after := in.apply(before)
		if err := tx.UpdateProduct(ctx, after); err != nil {
			return err
		}
		out = after
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{
			Table: audit.TableProducts, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after,
		})
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return out, nil
}

// DeleteProduct removes a product without ledger history.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx ProductTx) error {
		before, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{
			Table: audit.TableProducts, Operation: audit.OpDelete, RecordID: id, Old: before,
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// GetProduct loads a product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns a page of products.
func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]Product, shared.Pagination, error) {
	switch f.Level {
	case "", StockOut, StockLow, StockOK:
	default:
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown stock level %q", shared.ErrValidation, f.Level)
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return nonNil(items), shared.NewPagination(f.Page, total), nil
}

// ListMovements returns a page of ledger rows.
func (s *Service) ListMovements(ctx context.Context, f MovementFilter) ([]Movement, shared.Pagination, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w %q", ErrUnknownMovementType, f.Type)
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.ListMovements(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return nonNil(items), shared.NewPagination(f.Page, total), nil
}

// LowStock lists active products whose status is low or out.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	items, err := s.repo.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate dashboard cache", slog.Any("error", err))
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
