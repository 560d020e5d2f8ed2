package appointments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, int, error)
}

// Invalidator is notified after appointment writes commit.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service books and maintains appointments.
type Service struct {
	repo        RepositoryPort
	recorder    *audit.Recorder
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service. invalidator may be nil.
func NewService(repo RepositoryPort, recorder *audit.Recorder, invalidator Invalidator, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, recorder: recorder, invalidator: invalidator, logger: logger}
}

// Create inserts the appointment and one line per service, then recomputes
// the total duration.
func (s *Service) Create(ctx context.Context, in CreateInput) (Appointment, error) {
	if err := in.validate(); err != nil {
		return Appointment{}, err
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	var out Appointment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.Insert(ctx, Appointment{
			ClientID:    in.ClientID,
			EmployeeID:  in.EmployeeID,
			ScheduledAt: in.ScheduledAt,
			Status:      status,
			Notes:       in.Notes,
		})
		if err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointments, Operation: audit.OpInsert, RecordID: a.ID, New: a}); err != nil {
			return err
		}
		for _, serviceID := range in.ServiceIDs {
			if _, err := s.addLine(ctx, tx, a.ID, LineInput{ServiceID: serviceID}); err != nil {
				return err
			}
		}
		out, err = RecomputeDuration(ctx, s.recorder, tx, a.ID)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, out.ID)
}

// Update reschedules an appointment. Lines and status are untouched.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Appointment, error) {
	if err := in.validate(); err != nil {
		return Appointment{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after := before
		after.ClientID = in.ClientID
		after.EmployeeID = in.EmployeeID
		after.ScheduledAt = in.ScheduledAt
		after.Notes = in.Notes
		if err := tx.Update(ctx, after); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointments, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after})
	})
	if err != nil {
		return Appointment{}, err
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// AddLine books another service on the appointment.
func (s *Service) AddLine(ctx context.Context, appointmentID int64, in LineInput) (Appointment, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !a.Status.Open() {
			return fmt.Errorf("%w: appointment %d is %s", shared.ErrValidation, appointmentID, a.Status)
		}
		if _, err := s.addLine(ctx, tx, appointmentID, in); err != nil {
			return err
		}
		_, err = RecomputeDuration(ctx, s.recorder, tx, appointmentID)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	return s.repo.Get(ctx, appointmentID)
}

// RemoveLine drops a booked service from the appointment.
func (s *Service) RemoveLine(ctx context.Context, appointmentID, lineID int64) (Appointment, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !a.Status.Open() {
			return fmt.Errorf("%w: appointment %d is %s", shared.ErrValidation, appointmentID, a.Status)
		}
		line, err := tx.GetLine(ctx, appointmentID, lineID)
		if err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, lineID); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointmentLines, Operation: audit.OpDelete, RecordID: lineID, Old: line}); err != nil {
			return err
		}
		_, err = RecomputeDuration(ctx, s.recorder, tx, appointmentID)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	return s.repo.Get(ctx, appointmentID)
}

func (s *Service) addLine(ctx context.Context, tx TxRepository, appointmentID int64, in LineInput) (Line, error) {
	if in.ServiceID <= 0 {
		return Line{}, fmt.Errorf("%w: service_id is required", shared.ErrValidation)
	}
	svc, err := tx.ServiceForBooking(ctx, in.ServiceID)
	if err != nil {
		return Line{}, err
	}
	if !svc.Active {
		return Line{}, fmt.Errorf("%w: service %q is not active", shared.ErrValidation, svc.Name)
	}
	line := Line{
		AppointmentID:   appointmentID,
		ServiceID:       svc.ID,
		AppliedPrice:    svc.Price,
		DurationMinutes: svc.DurationMinutes,
		Notes:           in.Notes,
	}
	id, err := tx.InsertLine(ctx, line)
	if err != nil {
		return Line{}, err
	}
	line.ID = id
	if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointmentLines, Operation: audit.OpInsert, RecordID: id, New: line}); err != nil {
		return Line{}, err
	}
	return line, nil
}

// RecomputeDuration sets the appointment's total duration to the sum of its
// line durations. It must run in the transaction that changed the lines.
func RecomputeDuration(ctx context.Context, rec *audit.Recorder, tx TxRepository, appointmentID int64) (Appointment, error) {
	before, err := tx.GetForUpdate(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	lines, err := tx.Lines(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	total := 0
	for _, l := range lines {
		total += l.DurationMinutes
	}
	if total == before.TotalDuration {
		return before, nil
	}
	after := before
	after.TotalDuration = total
	if err := tx.Update(ctx, after); err != nil {
		return Appointment{}, err
	}
	if err := rec.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointments, Operation: audit.OpUpdate, RecordID: appointmentID, Old: before, New: after}); err != nil {
		return Appointment{}, err
	}
	return after, nil
}

// SetStatus moves several appointments to status. Completing an appointment
// records the visit on its client.
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
			if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointments, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after}); err != nil {
				return err
			}
			if status == StatusCompleted && after.ClientID != nil {
				if err := clients.RecordVisit(ctx, s.recorder, tx.Clients(), *after.ClientID, after.ScheduledAt); err != nil {
					return err
				}
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.invalidate(ctx)
	}
	return changed, nil
}

// Delete removes an appointment and, by cascade, its lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		lines, err := tx.Lines(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		for _, l := range lines {
			if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointmentLines, Operation: audit.OpDelete, RecordID: l.ID, Old: l}); err != nil {
				return err
			}
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableAppointments, Operation: audit.OpDelete, RecordID: id, Old: before})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Get loads an appointment with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if a.Lines == nil {
		a.Lines = []Line{}
	}
	return a, nil
}

// List returns a page of appointments without lines.
func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, shared.Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, shared.Pagination{}, fmt.Errorf("%w: to is before from", shared.ErrValidation)
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Appointment{}
	}
	return items, shared.NewPagination(f.Page, total), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate dashboard cache", slog.Any("error", err))
	}
}
