// Package appointmentstest provides an in-memory appointment store for tests.
package appointmentstest

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/barberia/backoffice/internal/appointments"
	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/audit/audittest"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/shared"
)

// Store keeps appointments, lines, catalog services and clients in memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	appointments map[int64]appointments.Appointment
	lines        map[int64]appointments.Line
	services     map[int64]catalog.Service
	clients      map[int64]clients.Client
	nextID       int64

	Log *audittest.Log
}

// NewStore creates an empty store writing audit entries to log.
func NewStore(log *audittest.Log) *Store {
	if log == nil {
		log = &audittest.Log{}
	}
	return &Store{
		appointments: map[int64]appointments.Appointment{},
		lines:        map[int64]appointments.Line{},
		services:     map[int64]catalog.Service{},
		clients:      map[int64]clients.Client{},
		Log:          log,
	}
}

var _ appointments.RepositoryPort = (*Store)(nil)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SeedService registers a catalog service.
func (s *Store) SeedService(svc catalog.Service) catalog.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == 0 {
		svc.ID = s.id()
	}
	s.services[svc.ID] = svc
	return svc
}

// SeedClient registers a client.
func (s *Store) SeedClient(c clients.Client) clients.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.clients[c.ID] = c
	return c
}

// SeedAppointment stores an appointment with its lines as given.
func (s *Store) SeedAppointment(a appointments.Appointment) appointments.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	for i := range a.Lines {
		if a.Lines[i].ID == 0 {
			a.Lines[i].ID = s.id()
		}
		a.Lines[i].AppointmentID = a.ID
		s.lines[a.Lines[i].ID] = a.Lines[i]
	}
	a.Lines = nil
	s.appointments[a.ID] = a
	return a
}

// Client returns the current state of a client.
func (s *Store) Client(id int64) clients.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[id]
}

// Lock serialises a caller-managed transaction. It pairs with Unlock.
func (s *Store) Lock() { s.txMu.Lock() }

// Unlock releases the transaction lock.
func (s *Store) Unlock() { s.txMu.Unlock() }

// Snapshot captures the current state and returns a function restoring it.
func (s *Store) Snapshot() func() {
	s.mu.Lock()
	appts := maps.Clone(s.appointments)
	lines := maps.Clone(s.lines)
	services := maps.Clone(s.services)
	cls := maps.Clone(s.clients)
	next := s.nextID
	logLen := s.Log.Len()
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.appointments, s.lines, s.services, s.clients = appts, lines, services, cls
		s.nextID = next
		s.Log.Truncate(logLen)
	}
}

// WithTx implements appointments.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, appointments.TxRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, s.Tx()); err != nil {
		restore()
		return err
	}
	return nil
}

// Tx returns the transactional view. Callers must hold Lock or run inside WithTx.
func (s *Store) Tx() appointments.TxRepository { return &txView{store: s} }

// Get implements appointments.RepositoryPort.
func (s *Store) Get(_ context.Context, id int64) (appointments.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return appointments.Appointment{}, fmt.Errorf("appointment %d: %w", id, shared.ErrNotFound)
	}
	a.Lines = s.linesOf(id)
	return a, nil
}

// List implements appointments.RepositoryPort.
func (s *Store) List(_ context.Context, f appointments.Filter) ([]appointments.Appointment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointments.Appointment
	for _, a := range s.appointments {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.EmployeeID != nil && a.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.ClientID != nil && (a.ClientID == nil || *a.ClientID != *f.ClientID) {
			continue
		}
		if !f.From.IsZero() && a.ScheduledAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.ScheduledAt.Before(f.To) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	total := len(out)
	start := min(f.Page.Offset(), total)
	end := min(start+f.Page.Limit(), total)
	return out[start:end], total, nil
}

func (s *Store) linesOf(appointmentID int64) []appointments.Line {
	var out []appointments.Line
	for _, l := range s.lines {
		if l.AppointmentID == appointmentID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type txView struct{ store *Store }

func (t *txView) Audit() audit.Appender { return t.store.Log }

func (t *txView) Clients() clients.TxRepository { return clientTx{store: t.store} }

func (t *txView) GetForUpdate(_ context.Context, id int64) (appointments.Appointment, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	a, ok := t.store.appointments[id]
	if !ok {
		return appointments.Appointment{}, fmt.Errorf("appointment %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func (t *txView) Lines(_ context.Context, appointmentID int64) ([]appointments.Line, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.linesOf(appointmentID), nil
}

func (t *txView) Insert(_ context.Context, a appointments.Appointment) (appointments.Appointment, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.checkSlot(a); err != nil {
		return appointments.Appointment{}, err
	}
	a.ID = t.store.id()
	a.CreatedAt = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	a.Lines = nil
	t.store.appointments[a.ID] = a
	return a, nil
}

func (t *txView) Update(_ context.Context, a appointments.Appointment) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.checkSlot(a); err != nil {
		return err
	}
	a.Lines = nil
	t.store.appointments[a.ID] = a
	return nil
}

func (s *Store) checkSlot(a appointments.Appointment) error {
	for _, other := range s.appointments {
		if other.ID != a.ID && other.EmployeeID == a.EmployeeID && other.ScheduledAt.Equal(a.ScheduledAt) {
			return fmt.Errorf("%w: uni_employee_scheduled_at", shared.ErrConflict)
		}
	}
	return nil
}

func (t *txView) Delete(_ context.Context, id int64) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	delete(t.store.appointments, id)
	for lid, l := range t.store.lines {
		if l.AppointmentID == id {
			delete(t.store.lines, lid)
		}
	}
	return nil
}

func (t *txView) ServiceForBooking(_ context.Context, serviceID int64) (catalog.Service, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	svc, ok := t.store.services[serviceID]
	if !ok {
		return catalog.Service{}, fmt.Errorf("service %d: %w", serviceID, shared.ErrNotFound)
	}
	return svc, nil
}

func (t *txView) GetLine(_ context.Context, appointmentID, lineID int64) (appointments.Line, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	l, ok := t.store.lines[lineID]
	if !ok || l.AppointmentID != appointmentID {
		return appointments.Line{}, fmt.Errorf("line %d: %w", lineID, shared.ErrNotFound)
	}
	return l, nil
}

func (t *txView) InsertLine(_ context.Context, l appointments.Line) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, other := range t.store.lines {
		if other.AppointmentID == l.AppointmentID && other.ServiceID == l.ServiceID {
			return 0, fmt.Errorf("%w: uni_appointment_service", shared.ErrConflict)
		}
	}
	l.ID = t.store.id()
	t.store.lines[l.ID] = l
	return l.ID, nil
}

func (t *txView) DeleteLine(_ context.Context, lineID int64) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	delete(t.store.lines, lineID)
	return nil
}

type clientTx struct{ store *Store }

func (c clientTx) Audit() audit.Appender { return c.store.Log }

func (c clientTx) GetForUpdate(_ context.Context, id int64) (clients.Client, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	cl, ok := c.store.clients[id]
	if !ok {
		return clients.Client{}, fmt.Errorf("client %d: %w", id, shared.ErrNotFound)
	}
	return cl, nil
}

func (c clientTx) Insert(_ context.Context, cl clients.Client) (clients.Client, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	cl.ID = c.store.id()
	c.store.clients[cl.ID] = cl
	return cl, nil
}

func (c clientTx) Update(_ context.Context, cl clients.Client) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.clients[cl.ID] = cl
	return nil
}

func (c clientTx) Delete(_ context.Context, id int64) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.clients, id)
	return nil
}
