package staff

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/audit/audittest"
	"github.com/barberia/backoffice/internal/shared"
)

type memoryRepo struct {
	employees map[int64]Employee
	schedules map[int64]Schedule
	nextID    int64
	log       *audittest.Log
}

type memoryTx struct{ repo *memoryRepo }

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{employees: map[int64]Employee{}, schedules: map[int64]Schedule{}, log: &audittest.Log{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	employees := make(map[int64]Employee, len(r.employees))
	for k, v := range r.employees {
		employees[k] = v
	}
	schedules := make(map[int64]Schedule, len(r.schedules))
	for k, v := range r.schedules {
		schedules[k] = v
	}
	logLen := r.log.Len()
	if err := fn(ctx, memoryTx{repo: r}); err != nil {
		r.employees, r.schedules = employees, schedules
		r.log.Truncate(logLen)
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Employee, error) {
	e, ok := r.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (r *memoryRepo) List(_ context.Context, f Filter) ([]Employee, int, error) {
	var out []Employee
	for _, e := range r.employees {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Specialty != "" && e.Specialty != f.Specialty {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) ListSchedules(_ context.Context, employeeID int64) ([]Schedule, error) {
	var out []Schedule
	for _, s := range r.schedules {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (tx memoryTx) Audit() audit.Appender { return tx.repo.log }

func (tx memoryTx) GetForUpdate(ctx context.Context, id int64) (Employee, error) {
	return tx.repo.Get(ctx, id)
}

func (tx memoryTx) Insert(_ context.Context, e Employee) (int64, error) {
	for _, existing := range tx.repo.employees {
		if existing.Phone == e.Phone {
			return 0, fmt.Errorf("%w: uni_employee_phone", shared.ErrConflict)
		}
	}
	tx.repo.nextID++
	e.ID = tx.repo.nextID
	tx.repo.employees[e.ID] = e
	return e.ID, nil
}

func (tx memoryTx) Update(_ context.Context, e Employee) error {
	tx.repo.employees[e.ID] = e
	return nil
}

func (tx memoryTx) Delete(_ context.Context, id int64) error {
	delete(tx.repo.employees, id)
	return nil
}

func (tx memoryTx) GetSchedule(_ context.Context, employeeID, scheduleID int64) (Schedule, error) {
	s, ok := tx.repo.schedules[scheduleID]
	if !ok || s.EmployeeID != employeeID {
		return Schedule{}, fmt.Errorf("schedule %d: %w", scheduleID, shared.ErrNotFound)
	}
	return s, nil
}

func (tx memoryTx) InsertSchedule(_ context.Context, s Schedule) (int64, error) {
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	tx.repo.schedules[s.ID] = s
	return s.ID, nil
}

func (tx memoryTx) DeleteSchedule(_ context.Context, scheduleID int64) error {
	delete(tx.repo.schedules, scheduleID)
	return nil
}

func sampleInput(phone string) Input {
	return Input{
		FirstName:         "Carlos",
		LastName:          "Vega",
		Phone:             phone,
		Role:              "barber",
		Specialty:         "fades",
		HiredOn:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CommissionPercent: decimal.RequireFromString("12.5"),
	}
}

func TestValidateSchedule(t *testing.T) {
	cases := []struct {
		name  string
		slot  Schedule
		valid bool
	}{
		{"regular shift", Schedule{Weekday: 1, Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(14, 0, 0)}, true},
		{"full day break", Schedule{Weekday: 7, Start: NewTimeOfDay(0, 0, 0), End: NewTimeOfDay(23, 59, 59), IsBreak: true}, true},
		{"lunch break", Schedule{Weekday: 3, Start: NewTimeOfDay(14, 0, 0), End: NewTimeOfDay(15, 0, 0), IsBreak: true}, true},
		{"start equals end", Schedule{Weekday: 2, Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(9, 0, 0)}, false},
		{"start after end", Schedule{Weekday: 2, Start: NewTimeOfDay(18, 0, 0), End: NewTimeOfDay(9, 0, 0)}, false},
		{"break reversed", Schedule{Weekday: 2, Start: NewTimeOfDay(15, 0, 0), End: NewTimeOfDay(14, 0, 0), IsBreak: true}, false},
		{"weekday zero", Schedule{Weekday: 0, Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0)}, false},
		{"weekday eight", Schedule{Weekday: 8, Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0)}, false},
		{"past midnight", Schedule{Weekday: 5, Start: NewTimeOfDay(22, 0, 0), End: NewTimeOfDay(24, 30, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSchedule(tc.slot)
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	require.Equal(t, "09:30:00", v.String())

	v, err = ParseTimeOfDay("23:59:59")
	require.NoError(t, err)
	require.Equal(t, lastSecond, v)

	_, err = ParseTimeOfDay("25:00")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateEmployeeDefaultsToActive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	e, err := svc.Create(context.Background(), sampleInput("655000111"))
	require.NoError(t, err)
	require.Equal(t, StatusActive, e.Status)
	require.Equal(t, "12.5", e.CommissionPercent.String())
	require.Len(t, repo.log.Filter(audit.TableEmployees), 1)

	bad := sampleInput("655000112")
	bad.CommissionPercent = decimal.NewFromInt(101)
	_, err = svc.Create(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetStatusSkipsUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	a, _ := svc.Create(ctx, sampleInput("1"))
	b, _ := svc.Create(ctx, sampleInput("2"))

	n, err := svc.SetStatus(ctx, []int64{a.ID}, StatusOnLeave)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = svc.SetStatus(ctx, []int64{a.ID, b.ID}, StatusOnLeave)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.SetStatus(ctx, []int64{a.ID, 99}, StatusInactive)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, StatusOnLeave, repo.employees[a.ID].Status)

	_, err = svc.SetStatus(ctx, []int64{a.ID}, "fired")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSchedules(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	e, _ := svc.Create(ctx, sampleInput("1"))

	_, err := svc.AddSchedule(ctx, e.ID, Schedule{Weekday: 2, Start: NewTimeOfDay(16, 0, 0), End: NewTimeOfDay(20, 0, 0)})
	require.NoError(t, err)
	first, err := svc.AddSchedule(ctx, e.ID, Schedule{Weekday: 1, Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(14, 0, 0)})
	require.NoError(t, err)

	_, err = svc.AddSchedule(ctx, e.ID, Schedule{Weekday: 1, Start: NewTimeOfDay(14, 0, 0), End: NewTimeOfDay(9, 0, 0)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AddSchedule(ctx, 404, Schedule{Weekday: 1, Start: NewTimeOfDay(9, 0, 0), End: NewTimeOfDay(10, 0, 0)})
	require.ErrorIs(t, err, shared.ErrNotFound)

	slots, err := svc.ListSchedules(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, first.ID, slots[0].ID)

	require.NoError(t, svc.DeleteSchedule(ctx, e.ID, first.ID))
	require.ErrorIs(t, svc.DeleteSchedule(ctx, e.ID, first.ID), shared.ErrNotFound)
	require.Len(t, repo.log.Filter(audit.TableEmployeeSchedules), 3)
}

func TestHandlerSchedules(t *testing.T) {
	repo := newMemoryRepo()
	r := chi.NewRouter()
	NewHandler(nil, NewService(repo, nil)).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(
		`{"first_name":"Iván","last_name":"Soto","phone":"699","role":"barber","hired_on":"2024-01-15T00:00:00Z","commission_percent":"10"}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "/api/employees/1", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/employees/1/schedules", strings.NewReader(
		`{"weekday":6,"start":"00:00","end":"23:59:59","is_break":true}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"end":"23:59:59"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/employees/1/schedules", strings.NewReader(
		`{"weekday":6,"start":"12:00","end":"11:00"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/employees/1/schedules", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"weekday":6`)
}
