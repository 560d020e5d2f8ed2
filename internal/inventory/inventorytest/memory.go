// Package inventorytest provides an in-memory inventory store for tests.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/audit/audittest"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/shared"
)

// Store keeps products and movements in memory. WithTx runs callbacks one at
// a time and restores the previous state when the callback fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products       map[int64]inventory.Product
	movements      []inventory.Movement
	nextProductID  int64
	nextMovementID int64

	Log *audittest.Log
}

// NewStore creates an empty store writing audit entries to log.
func NewStore(log *audittest.Log) *Store {
	if log == nil {
		log = &audittest.Log{}
	}
	return &Store{products: make(map[int64]inventory.Product), Log: log}
}

var _ inventory.RepositoryPort = (*Store)(nil)

// Seed inserts a product directly, bypassing the ledger.
func (s *Store) Seed(p inventory.Product) inventory.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextProductID++
		p.ID = s.nextProductID
	} else if p.ID > s.nextProductID {
		s.nextProductID = p.ID
	}
	s.products[p.ID] = p
	return p
}

// Product returns the current state of a product.
func (s *Store) Product(id int64) inventory.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

// Movements returns every recorded movement in insertion order.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Movement, len(s.movements))
	copy(out, s.movements)
	return out
}

// Lock serialises a caller-managed transaction. It pairs with Unlock.
func (s *Store) Lock() { s.txMu.Lock() }

// Unlock releases the transaction lock.
func (s *Store) Unlock() { s.txMu.Unlock() }

// Snapshot captures the current state and returns a function restoring it.
func (s *Store) Snapshot() func() {
	s.mu.Lock()
	products := make(map[int64]inventory.Product, len(s.products))
	for k, v := range s.products {
		products[k] = v
	}
	movements := make([]inventory.Movement, len(s.movements))
	copy(movements, s.movements)
	nextProduct, nextMovement := s.nextProductID, s.nextMovementID
	logLen := s.Log.Len()
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.products = products
		s.movements = movements
		s.nextProductID, s.nextMovementID = nextProduct, nextMovement
		s.Log.Truncate(logLen)
	}
}

// WithTx implements inventory.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.ProductTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, s.Tx()); err != nil {
		restore()
		return err
	}
	return nil
}

// Tx returns the transactional view of the store. Callers must hold Lock or
// run inside WithTx.
func (s *Store) Tx() inventory.ProductTx {
	return &txView{store: s}
}

// GetProduct implements inventory.RepositoryPort.
func (s *Store) GetProduct(_ context.Context, id int64) (inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

// ListProducts implements inventory.RepositoryPort.
func (s *Store) ListProducts(_ context.Context, f inventory.ProductFilter) ([]inventory.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Product
	for _, p := range s.products {
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Brand != "" && p.Brand != f.Brand {
			continue
		}
		if f.Active != nil && p.Active != *f.Active {
			continue
		}
		if f.Level != "" && inventory.StockStatus(p) != f.Level {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, f.Page), len(out), nil
}

// ListMovements implements inventory.RepositoryPort.
func (s *Store) ListMovements(_ context.Context, f inventory.MovementFilter) ([]inventory.Movement, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Movement
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if f.ProductID != nil && m.ProductID != *f.ProductID {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if !f.From.IsZero() && m.MovedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !m.MovedAt.Before(f.To) {
			continue
		}
		out = append(out, m)
	}
	return paginate(out, f.Page), len(out), nil
}

// LowStock implements inventory.RepositoryPort.
func (s *Store) LowStock(_ context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Product
	for _, p := range s.products {
		if p.Active && p.StockQty <= p.MinStock {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQty != out[j].StockQty {
			return out[i].StockQty < out[j].StockQty
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type txView struct {
	store *Store
}

func (t *txView) Audit() audit.Appender { return t.store.Log }

func (t *txView) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	return t.store.GetProduct(ctx, id)
}

func (t *txView) GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error) {
	return t.store.GetProduct(ctx, id)
}

func (t *txView) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[m.ProductID]; !ok {
		return 0, fmt.Errorf("movement product %d: %w", m.ProductID, shared.ErrValidation)
	}
	s.nextMovementID++
	m.ID = s.nextMovementID
	s.movements = append(s.movements, m)
	return m.ID, nil
}

func (t *txView) UpdateStock(_ context.Context, productID int64, qty int) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	if qty < 0 {
		return fmt.Errorf("%w: products_stock_qty_check", shared.ErrValidation)
	}
	p.StockQty = qty
	s.products[productID] = p
	return nil
}

func (t *txView) InsertProduct(_ context.Context, p inventory.Product) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if strings.EqualFold(existing.Name, p.Name) {
			return 0, fmt.Errorf("%w: uni_product_name", shared.ErrConflict)
		}
	}
	s.nextProductID++
	p.ID = s.nextProductID
	p.StockQty = 0
	s.products[p.ID] = p
	return p.ID, nil
}

func (t *txView) UpdateProduct(_ context.Context, p inventory.Product) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	for id, existing := range s.products {
		if id != p.ID && strings.EqualFold(existing.Name, p.Name) {
			return fmt.Errorf("%w: uni_product_name", shared.ErrConflict)
		}
	}
	p.StockQty = current.StockQty
	s.products[p.ID] = p
	return nil
}

func (t *txView) DeleteProduct(_ context.Context, id int64) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return shared.ErrNotFound
	}
	for _, m := range s.movements {
		if m.ProductID == id {
			return fmt.Errorf("%w: inventory_movements_product_id_fkey", shared.ErrInUse)
		}
	}
	delete(s.products, id)
	return nil
}

func paginate[T any](items []T, page shared.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
