package catalog

import (
	"context"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for the manager.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Service, error)
	List(ctx context.Context, f Filter) ([]Service, int, error)
}

// Manager maintains the service catalog. Every write is audited.
type Manager struct {
	repo     RepositoryPort
	recorder *audit.Recorder
}

// NewManager builds Manager.
func NewManager(repo RepositoryPort, recorder *audit.Recorder) *Manager {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	return &Manager{repo: repo, recorder: recorder}
}

// Create adds a service. New services are active unless stated otherwise.
func (m *Manager) Create(ctx context.Context, in ServiceInput) (Service, error) {
	if err := in.validate(); err != nil {
		return Service{}, err
	}
	s := in.apply(Service{Active: true})
	err := m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, s)
		if err != nil {
			return err
		}
		s.ID = id
		return m.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableServices, Operation: audit.OpInsert, RecordID: id, New: s})
	})
	if err != nil {
		return Service{}, err
	}
	return s, nil
}

// Update replaces the attributes of a service. Existing appointment lines keep
// the price and duration they were booked with.
func (m *Manager) Update(ctx context.Context, id int64, in ServiceInput) (Service, error) {
	if err := in.validate(); err != nil {
		return Service{}, err
	}
	var out Service
	err := m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after := in.apply(before)
		if err := tx.Update(ctx, after); err != nil {
			return err
		}
		out = after
		return m.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableServices, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after})
	})
	if err != nil {
		return Service{}, err
	}
	return out, nil
}

// SetActive toggles the active flag on several services at once.
func (m *Manager) SetActive(ctx context.Context, ids []int64, active bool) (int, error) {
	changed := 0
	err := m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		changed = 0
		for _, id := range ids {
			before, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if before.Active == active {
				continue
			}
			after := before
			after.Active = active
			if err := tx.Update(ctx, after); err != nil {
				return err
			}
			if err := m.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableServices, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// Delete removes a service that no appointment or sale references.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	return m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return m.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableServices, Operation: audit.OpDelete, RecordID: id, Old: before})
	})
}

// Get loads a service.
func (m *Manager) Get(ctx context.Context, id int64) (Service, error) {
	return m.repo.Get(ctx, id)
}

// List returns a page of services.
func (m *Manager) List(ctx context.Context, f Filter) ([]Service, shared.Pagination, error) {
	f.Page = f.Page.Normalize()
	items, total, err := m.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Service{}
	}
	return items, shared.NewPagination(f.Page, total), nil
}
