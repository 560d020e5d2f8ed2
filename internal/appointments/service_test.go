package appointments_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/appointments"
	"github.com/barberia/backoffice/internal/appointments/appointmentstest"
	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/catalog"
	"github.com/barberia/backoffice/internal/clients"
	"github.com/barberia/backoffice/internal/shared"
)

var tenAM = time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *appointmentstest.Store
	svc     *appointments.Service
	haircut catalog.Service
	beard   catalog.Service
	client  clients.Client
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := appointmentstest.NewStore(nil)
	return fixture{
		store:   store,
		svc:     appointments.NewService(store, nil, nil, nil),
		haircut: store.SeedService(catalog.Service{Name: "Corte", DurationMinutes: 30, Price: decimal.RequireFromString("20.00"), Active: true}),
		beard:   store.SeedService(catalog.Service{Name: "Barba", DurationMinutes: 20, Price: decimal.RequireFromString("15.00"), Active: true}),
		client:  store.SeedClient(clients.Client{FirstName: "Pablo", LastName: "Núñez", Phone: "600", Active: true}),
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateSnapshotsPricesAndDuration(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Create(context.Background(), appointments.CreateInput{
		ClientID:    int64Ptr(f.client.ID),
		EmployeeID:  7,
		ScheduledAt: tenAM,
		ServiceIDs:  []int64{f.haircut.ID, f.beard.ID},
	})
	require.NoError(t, err)
	require.Equal(t, appointments.StatusPending, a.Status)
	require.Equal(t, 50, a.TotalDuration)
	require.Len(t, a.Lines, 2)
	require.Equal(t, "35", a.Total().String())
	require.Equal(t, tenAM.Add(50*time.Minute), a.EndsAt())

	f.store.SeedService(catalog.Service{ID: f.haircut.ID, Name: "Corte", DurationMinutes: 30, Price: decimal.RequireFromString("25.00"), Active: true})
	again, err := f.svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, "20", again.Lines[0].AppliedPrice.String())

	require.Len(t, f.store.Log.Filter(audit.TableAppointmentLines), 2)
	require.Len(t, f.store.Log.Filter(audit.TableAppointments), 2)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := f.store.SeedService(catalog.Service{Name: "Tinte", DurationMinutes: 60, Price: decimal.NewFromInt(40)})

	_, err := f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{inactive.ID}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{f.beard.ID, f.beard.ID}})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{f.haircut.ID}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{f.beard.ID}})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 8, ScheduledAt: tenAM, ServiceIDs: []int64{f.beard.ID}})
	require.NoError(t, err)

	items, _, err := f.svc.List(ctx, appointments.Filter{Page: shared.PageRequest{}})
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestLinesRecomputeDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{f.haircut.ID}})
	require.NoError(t, err)
	require.Equal(t, 30, a.TotalDuration)

	a, err = f.svc.AddLine(ctx, a.ID, appointments.LineInput{ServiceID: f.beard.ID})
	require.NoError(t, err)
	require.Equal(t, 50, a.TotalDuration)

	_, err = f.svc.AddLine(ctx, a.ID, appointments.LineInput{ServiceID: f.beard.ID})
	require.ErrorIs(t, err, shared.ErrConflict)

	a, err = f.svc.RemoveLine(ctx, a.ID, a.Lines[0].ID)
	require.NoError(t, err)
	require.Equal(t, 20, a.TotalDuration)
	require.Len(t, a.Lines, 1)

	_, err = f.svc.RemoveLine(ctx, a.ID, 9999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCompletingRecordsClientVisit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, appointments.CreateInput{ClientID: int64Ptr(f.client.ID), EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{f.haircut.ID}})
	require.NoError(t, err)

	n, err := f.svc.SetStatus(ctx, []int64{a.ID}, appointments.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	visit := f.store.Client(f.client.ID).LastVisitAt
	require.NotNil(t, visit)
	require.True(t, visit.Equal(tenAM))
	require.Len(t, f.store.Log.Filter(audit.TableClients), 1)

	_, err = f.svc.AddLine(ctx, a.ID, appointments.LineInput{ServiceID: f.beard.ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.SetStatus(ctx, []int64{a.ID}, "done")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteAuditsLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, appointments.CreateInput{EmployeeID: 7, ScheduledAt: tenAM, ServiceIDs: []int64{f.haircut.ID, f.beard.ID}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	_, err = f.svc.Get(ctx, a.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	deletes := 0
	for _, e := range f.store.Log.Entries() {
		if e.Operation == audit.OpDelete {
			deletes++
		}
	}
	require.Equal(t, 3, deletes)
}

type stubSales struct {
	created map[int64]bool
}

func (s *stubSales) GenerateSale(_ context.Context, appointmentID int64) (int64, bool, error) {
	if s.created[appointmentID] {
		return 100 + appointmentID, false, nil
	}
	s.created[appointmentID] = true
	return 100 + appointmentID, true, nil
}

func TestHandlerGenerateSale(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	appointments.NewHandler(nil, f.svc, &stubSales{created: map[int64]bool{}}).MountRoutes(r)

	body := `{"employee_id":7,"scheduled_at":"2025-02-14T10:00:00Z","service_ids":[1,2]}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	location := rr.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/api/appointments/"))
	id := strings.TrimPrefix(location, "/api/appointments/")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/"+id+"/sale", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	saleLocation := rr.Header().Get("Location")
	require.True(t, strings.HasPrefix(saleLocation, "/api/sales/"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/"+id+"/sale", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, saleLocation, rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rr.Code)
}
