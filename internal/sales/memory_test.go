package sales_test

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/barberia/backoffice/internal/appointments"
	"github.com/barberia/backoffice/internal/appointments/appointmentstest"
	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/audit/audittest"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/inventory/inventorytest"
	"github.com/barberia/backoffice/internal/sales"
	"github.com/barberia/backoffice/internal/shared"
)

// memory is an in-memory sales repository sharing one audit log and one
// transaction with the inventory and appointment stores.
type memory struct {
	txMu sync.Mutex
	mu   sync.Mutex

	log   *audittest.Log
	stock *inventorytest.Store
	appts *appointmentstest.Store

	sales    map[int64]sales.Sale
	lines    map[int64]sales.Line
	services map[int64]catalog.Service
	nextID   int64

	// concurrent holds sales committed by another converter while a
	// transaction is in flight. They become visible once it ends.
	concurrent []sales.Sale
}

func newMemory() *memory {
	log := &audittest.Log{}
	return &memory{
		log:      log,
		stock:    inventorytest.NewStore(log),
		appts:    appointmentstest.NewStore(log),
		sales:    map[int64]sales.Sale{},
		lines:    map[int64]sales.Line{},
		services: map[int64]catalog.Service{},
		nextID:   1000,
	}
}

var _ sales.RepositoryPort = (*memory)(nil)

func (m *memory) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.stock.Lock()
	defer m.stock.Unlock()
	m.appts.Lock()
	defer m.appts.Unlock()

	restoreStock := m.stock.Snapshot()
	restoreAppts := m.appts.Snapshot()
	m.mu.Lock()
	savedSales, savedLines, savedNext := maps.Clone(m.sales), maps.Clone(m.lines), m.nextID
	m.mu.Unlock()

	err := fn(ctx, &memoryTx{m: m})
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.sales, m.lines, m.nextID = savedSales, savedLines, savedNext
		restoreAppts()
		restoreStock()
	}
	for _, s := range m.concurrent {
		m.sales[s.ID] = s
	}
	m.concurrent = nil
	return err
}

func (m *memory) Get(_ context.Context, id int64) (sales.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return sales.Sale{}, fmt.Errorf("sale %d: %w", id, shared.ErrNotFound)
	}
	s.Lines = m.linesOf(id)
	return s, nil
}

func (m *memory) List(_ context.Context, f sales.Filter) ([]sales.Sale, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sales.Sale
	for _, s := range m.sales {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.PaymentMethod != "" && s.PaymentMethod != f.PaymentMethod {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memory) FindActiveByAppointment(_ context.Context, appointmentID int64) (sales.Sale, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.activeFor(appointmentID)
	if ok {
		s.Lines = m.linesOf(s.ID)
	}
	return s, ok, nil
}

func (m *memory) activeFor(appointmentID int64) (sales.Sale, bool) {
	for _, s := range m.sales {
		if s.AppointmentID != nil && *s.AppointmentID == appointmentID && s.Status != sales.StatusVoided {
			return s, true
		}
	}
	return sales.Sale{}, false
}

func (m *memory) linesOf(saleID int64) []sales.Line {
	var out []sales.Line
	for _, l := range m.lines {
		if l.SaleID == saleID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memory) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

type memoryTx struct{ m *memory }

func (t *memoryTx) Audit() audit.Appender { return t.m.log }
func (t *memoryTx) Stock() inventory.ProductTx { return t.m.stock.Tx() }
func (t *memoryTx) Appointments() appointments.Reader { return t.m.appts.Tx() }

func (t *memoryTx) FindActiveByAppointment(ctx context.Context, appointmentID int64) (sales.Sale, bool, error) {
	return t.m.FindActiveByAppointment(ctx, appointmentID)
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (sales.Sale, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	s, ok := t.m.sales[id]
	if !ok {
		return sales.Sale{}, fmt.Errorf("sale %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (t *memoryTx) Lines(_ context.Context, saleID int64) ([]sales.Line, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.linesOf(saleID), nil
}

func (t *memoryTx) Insert(_ context.Context, s sales.Sale) (sales.Sale, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if s.AppointmentID != nil && s.Status != sales.StatusVoided {
		if _, taken := t.m.activeFor(*s.AppointmentID); taken {
			return sales.Sale{}, fmt.Errorf("%w: uni_sale_active_appointment", shared.ErrConflict)
		}
		for _, c := range t.m.concurrent {
			if c.AppointmentID != nil && *c.AppointmentID == *s.AppointmentID {
				return sales.Sale{}, fmt.Errorf("%w: uni_sale_active_appointment", shared.ErrConflict)
			}
		}
	}
	t.m.nextID++
	s.ID = t.m.nextID
	s.Lines = nil
	t.m.sales[s.ID] = s
	return s, nil
}

func (t *memoryTx) InsertLine(_ context.Context, l sales.Line) (int64, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if l.Item == nil {
		return 0, fmt.Errorf("%w: chk_sale_line_item", shared.ErrValidation)
	}
	t.m.nextID++
	l.ID = t.m.nextID
	t.m.lines[l.ID] = l
	return l.ID, nil
}

func (t *memoryTx) UpdateTotals(_ context.Context, s sales.Sale) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	cur := t.m.sales[s.ID]
	cur.Subtotal, cur.Tax, cur.Discount, cur.Total = s.Subtotal, s.Tax, s.Discount, s.Total
	t.m.sales[s.ID] = cur
	return nil
}

func (t *memoryTx) UpdateStatus(_ context.Context, id int64, status sales.Status) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	cur := t.m.sales[id]
	if cur.AppointmentID != nil && status != sales.StatusVoided {
		if other, taken := t.m.activeFor(*cur.AppointmentID); taken && other.ID != id {
			return fmt.Errorf("%w: uni_sale_active_appointment", shared.ErrConflict)
		}
	}
	cur.Status = status
	t.m.sales[id] = cur
	return nil
}

func (t *memoryTx) Delete(_ context.Context, id int64) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	delete(t.m.sales, id)
	for lid, l := range t.m.lines {
		if l.SaleID == id {
			delete(t.m.lines, lid)
		}
	}
	return nil
}

func (t *memoryTx) ServiceForSale(_ context.Context, serviceID int64) (catalog.Service, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	svc, ok := t.m.services[serviceID]
	if !ok {
		return catalog.Service{}, fmt.Errorf("service %d: %w", serviceID, shared.ErrNotFound)
	}
	return svc, nil
}
