package staff

import (
	"context"
	"fmt"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Employee, error)
	List(ctx context.Context, f Filter) ([]Employee, int, error)
	ListSchedules(ctx context.Context, employeeID int64) ([]Schedule, error)
}

// Service manages employees and their schedules.
type Service struct {
	repo     RepositoryPort
	recorder *audit.Recorder
}

// NewService builds Service.
func NewService(repo RepositoryPort, recorder *audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	return &Service{repo: repo, recorder: recorder}
}

// Create hires an employee. Status defaults to active.
func (s *Service) Create(ctx context.Context, in Input) (Employee, error) {
	if err := in.validate(); err != nil {
		return Employee{}, err
	}
	e := in.apply(Employee{Status: StatusActive})
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableEmployees, Operation: audit.OpInsert, RecordID: id, New: e})
	})
	if err != nil {
		return Employee{}, err
	}
	return e, nil
}

// Update replaces the editable attributes of an employee.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Employee, error) {
	if err := in.validate(); err != nil {
		return Employee{}, err
	}
	var out Employee
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
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableEmployees, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after})
	})
	if err != nil {
		return Employee{}, err
	}
	return out, nil
}

// SetStatus moves several employees to status.
func (s *Service) SetStatus(ctx context.Context, ids []int64, status Status) (int, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	changed := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		changed = 0
		for _, id := range ids {
			before, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if before.Status == status {
				continue
			}
			after := before
			after.Status = status
			if err := tx.Update(ctx, after); err != nil {
				return err
			}
			if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableEmployees, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// Delete removes an employee. Employees with appointments or sales are
// protected by the schema and yield shared.ErrInUse.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableEmployees, Operation: audit.OpDelete, RecordID: id, Old: before})
	})
}

// Get loads an employee.
func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of employees.
func (s *Service) List(ctx context.Context, f Filter) ([]Employee, shared.Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, f.Status)
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Employee{}
	}
	return items, shared.NewPagination(f.Page, total), nil
}

// AddSchedule validates and stores a schedule slot for the employee.
func (s *Service) AddSchedule(ctx context.Context, employeeID int64, slot Schedule) (Schedule, error) {
	slot.EmployeeID = employeeID
	if err := ValidateSchedule(slot); err != nil {
		return Schedule{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, employeeID); err != nil {
			return err
		}
		id, err := tx.InsertSchedule(ctx, slot)
		if err != nil {
			return err
		}
		slot.ID = id
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableEmployeeSchedules, Operation: audit.OpInsert, RecordID: id, New: slot})
	})
	if err != nil {
		return Schedule{}, err
	}
	return slot, nil
}

// ListSchedules returns the employee's weekly slots.
func (s *Service) ListSchedules(ctx context.Context, employeeID int64) ([]Schedule, error) {
	if _, err := s.repo.Get(ctx, employeeID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListSchedules(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Schedule{}
	}
	return items, nil
}

// DeleteSchedule removes one slot of the employee.
func (s *Service) DeleteSchedule(ctx context.Context, employeeID, scheduleID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetSchedule(ctx, employeeID, scheduleID)
		if err != nil {
			return err
		}
		if err := tx.DeleteSchedule(ctx, scheduleID); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableEmployeeSchedules, Operation: audit.OpDelete, RecordID: scheduleID, Old: before})
	})
}
