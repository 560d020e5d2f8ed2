package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, f Filter) ([]Sale, int, error)
	FindActiveByAppointment(ctx context.Context, appointmentID int64) (Sale, bool, error)
}

// Invalidator is notified after sale writes commit.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SaleMetrics counts created sales by source.
type SaleMetrics interface {
	ObserveSaleCreated(source string)
}

const (
	sourceAppointment = "appointment"
	sourceCounter     = "counter"
)

// Service assembles and maintains sales.
type Service struct {
	repo        RepositoryPort
	ledger      *inventory.Ledger
	recorder    *audit.Recorder
	invalidator Invalidator
	metrics     SaleMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. invalidator and metrics may be nil.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, recorder *audit.Recorder, invalidator Invalidator, metrics SaleMetrics, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	if ledger == nil {
		ledger = inventory.NewLedger(recorder, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		ledger:      ledger,
		recorder:    recorder,
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// ConvertAppointmentToSale creates the sale for an appointment, one service
// line per appointment line. When a non-voided sale already exists for the
// appointment it is returned unchanged and created is false.
func (s *Service) ConvertAppointmentToSale(ctx context.Context, appointmentID int64) (Sale, bool, error) {
	var (
		out     Sale
		created bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created = false
		existing, found, err := tx.FindActiveByAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if found {
			out = existing
			return nil
		}
		appt, err := tx.Appointments().GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		// A converter that held the lock before us may have committed.
		existing, found, err = tx.FindActiveByAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if found {
			out = existing
			return nil
		}
		apptLines, err := tx.Appointments().Lines(ctx, appointmentID)
		if err != nil {
			return err
		}

		header, err := s.insertHeader(ctx, tx, Sale{
			ClientID:      appt.ClientID,
			EmployeeID:    appt.EmployeeID,
			AppointmentID: &appt.ID,
			SoldAt:        s.now(),
			PaymentMethod: PaymentCash,
			Status:        StatusCompleted,
		})
		if err != nil {
			return err
		}
		lines := make([]Line, 0, len(apptLines))
		for _, al := range apptLines {
			line, err := s.insertLine(ctx, tx, Line{
				SaleID:    header.ID,
				Item:      ServiceItem{ServiceID: al.ServiceID},
				Quantity:  1,
				UnitPrice: al.AppliedPrice,
			})
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
		out, err = s.finishTotals(ctx, tx, header, lines)
		created = err == nil
		return err
	})
	if errors.Is(err, shared.ErrConflict) {
		existing, found, findErr := s.repo.FindActiveByAppointment(ctx, appointmentID)
		if findErr != nil {
			return Sale{}, false, findErr
		}
		if found {
			s.logger.Info("appointment already converted", slog.Int64("appointment_id", appointmentID), slog.Int64("sale_id", existing.ID))
			return existing, false, nil
		}
	}
	if err != nil {
		return Sale{}, false, err
	}
	if created {
		s.observe(sourceAppointment)
		s.invalidate(ctx)
	}
	return out, created, nil
}

// GenerateSale adapts ConvertAppointmentToSale for the appointment routes.
func (s *Service) GenerateSale(ctx context.Context, appointmentID int64) (int64, bool, error) {
	sale, created, err := s.ConvertAppointmentToSale(ctx, appointmentID)
	if err != nil {
		return 0, false, err
	}
	return sale.ID, created, nil
}

// CreateSale records a counter sale. Every product line posts a sale_out
// movement in the same transaction; a line without enough stock rejects the
// whole sale.
func (s *Service) CreateSale(ctx context.Context, in CreateInput) (Sale, error) {
	if err := in.validate(); err != nil {
		return Sale{}, err
	}
	items := make([]LineItem, len(in.Lines))
	for i, li := range in.Lines {
		item, err := li.Item()
		if err != nil {
			return Sale{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		items[i] = item
	}
	soldAt := s.now()
	if in.SoldAt != nil {
		soldAt = *in.SoldAt
	}

	var out Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, err := s.insertHeader(ctx, tx, Sale{
			ClientID:      in.ClientID,
			EmployeeID:    in.EmployeeID,
			SoldAt:        soldAt,
			Tax:           in.Tax.Round(2),
			Discount:      in.Discount.Round(2),
			PaymentMethod: in.PaymentMethod,
			Status:        StatusCompleted,
			Notes:         in.Notes,
		})
		if err != nil {
			return err
		}
		lines := make([]Line, 0, len(in.Lines))
		for i, li := range in.Lines {
			line, err := s.counterLine(ctx, tx, header, items[i], li)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			lines = append(lines, line)
		}
		out, err = s.finishTotals(ctx, tx, header, lines)
		return err
	})
	if err != nil {
		return Sale{}, err
	}
	s.observe(sourceCounter)
	s.invalidate(ctx)
	return out, nil
}

func (s *Service) counterLine(ctx context.Context, tx TxRepository, header Sale, item LineItem, in LineInput) (Line, error) {
	line := Line{SaleID: header.ID, Item: item, Quantity: in.Quantity, Discount: in.Discount.Round(2)}
	switch it := item.(type) {
	case ProductItem:
		p, err := tx.Stock().GetProduct(ctx, it.ProductID)
		if err != nil {
			return Line{}, err
		}
		if !p.Active || !p.ForSale {
			return Line{}, fmt.Errorf("%w: product %q is not for sale", shared.ErrValidation, p.Name)
		}
		line.UnitPrice = p.SalePrice
	case ServiceItem:
		svc, err := tx.ServiceForSale(ctx, it.ServiceID)
		if err != nil {
			return Line{}, err
		}
		if !svc.Active {
			return Line{}, fmt.Errorf("%w: service %q is not active", shared.ErrValidation, svc.Name)
		}
		line.UnitPrice = svc.Price
	}
	if in.UnitPrice != nil {
		line.UnitPrice = in.UnitPrice.Round(2)
	}
	line, err := s.insertLine(ctx, tx, line)
	if err != nil {
		return Line{}, err
	}
	if it, ok := item.(ProductItem); ok {
		employeeID := header.EmployeeID
		_, err := s.ledger.ApplyMovement(ctx, tx.Stock(), inventory.MovementInput{
			ProductID:  it.ProductID,
			Type:       inventory.MovementSaleOut,
			Quantity:   line.Quantity,
			EmployeeID: &employeeID,
			SaleID:     &header.ID,
			Reason:     fmt.Sprintf("sale #%d", header.ID),
		})
		if err != nil {
			return Line{}, err
		}
	}
	return line, nil
}

func (s *Service) insertHeader(ctx context.Context, tx TxRepository, sale Sale) (Sale, error) {
	sale = sale.withTotals(nil)
	inserted, err := tx.Insert(ctx, sale)
	if err != nil {
		return Sale{}, err
	}
	if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableSales, Operation: audit.OpInsert, RecordID: inserted.ID, New: inserted}); err != nil {
		return Sale{}, err
	}
	return inserted, nil
}

func (s *Service) insertLine(ctx context.Context, tx TxRepository, line Line) (Line, error) {
	if err := line.validate(); err != nil {
		return Line{}, err
	}
	line = line.withSubtotal()
	id, err := tx.InsertLine(ctx, line)
	if err != nil {
		return Line{}, err
	}
	line.ID = id
	if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableSaleLines, Operation: audit.OpInsert, RecordID: id, New: line}); err != nil {
		return Line{}, err
	}
	return line, nil
}

func (s *Service) finishTotals(ctx context.Context, tx TxRepository, header Sale, lines []Line) (Sale, error) {
	after := header.withTotals(lines)
	if after.Total.IsNegative() {
		return Sale{}, fmt.Errorf("%w: discount exceeds sale amount", shared.ErrValidation)
	}
	if err := tx.UpdateTotals(ctx, after); err != nil {
		return Sale{}, err
	}
	if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableSales, Operation: audit.OpUpdate, RecordID: header.ID, Old: header, New: after}); err != nil {
		return Sale{}, err
	}
	after.Lines = lines
	return after, nil
}

// SetStatus changes the status of several sales. Stock is not touched.
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
			if err := tx.UpdateStatus(ctx, id, status); err != nil {
				return err
			}
			after := before
			after.Status = status
			if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableSales, Operation: audit.OpUpdate, RecordID: id, Old: before, New: after}); err != nil {
				return err
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

// DeleteSale removes a sale and its lines. Movements it produced stay in the
// ledger with their sale reference cleared.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
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
			if err := s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableSaleLines, Operation: audit.OpDelete, RecordID: l.ID, Old: l}); err != nil {
				return err
			}
		}
		return s.recorder.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableSales, Operation: audit.OpDelete, RecordID: id, Old: before})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// GetSale loads a sale with its lines.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if sale.Lines == nil {
		sale.Lines = []Line{}
	}
	return sale, nil
}

// ListSales returns a page of sales without lines.
func (s *Service) ListSales(ctx context.Context, f Filter) ([]Sale, shared.Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, f.Status)
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, f.PaymentMethod)
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
		items = []Sale{}
	}
	return items, shared.NewPagination(f.Page, total), nil
}

func (s *Service) observe(source string) {
	if s.metrics != nil {
		s.metrics.ObserveSaleCreated(source)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate dashboard cache", slog.Any("error", err))
	}
}
