package clients

import (
	"context"
	"time"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Client, error)
	List(ctx context.Context, f Filter) ([]Client, int, error)
}

// Service maintains the client register.
type Service struct {
	repo     RepositoryPort
	recorder *audit.Recorder
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, recorder *audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	return &Service{repo: repo, recorder: recorder, now: time.Now}
}

// Create registers a client.
func (s *Service) Create(ctx context.Context, in Input) (Client, error) {
	if err := in.validate(s.now()); err != nil {
		return Client{}, err
	}
	var out Client
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.Insert(ctx, in.apply(Client{Active: true}))
		if err != nil {
			return err
		}
		out = c
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableClients, Operation: audit.OpInsert, RecordID: c.ID, New: c})
	})
	if err != nil {
		return Client{}, err
	}
	return out, nil
}

// Update replaces the editable attributes of a client.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Client, error) {
	if err := in.validate(s.now()); err != nil {
		return Client{}, err
	}
	var out Client
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after := in.apply(before)
		if err := tx.Update(ctx, after); err != nil {
			return err
		}
		out = after
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableClients, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after})
	})
	if err != nil {
		return Client{}, err
	}
	return out, nil
}

// SetActive activates or deactivates several clients.
func (s *Service) SetActive(ctx context.Context, ids []int64, active bool) (int, error) {
	changed := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
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
			if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableClients, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// Delete removes a client. Their appointments and sales keep existing with
// no client attached.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableClients, Operation: audit.OpDelete, RecordID: id, Old: before})
	})
}

// Get loads a client.
func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of clients.
func (s *Service) List(ctx context.Context, f Filter) ([]Client, shared.Pagination, error) {
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Client{}
	}
	return items, shared.NewPagination(f.Page, total), nil
}
