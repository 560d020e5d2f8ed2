package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/dashboard"
)

type fakeStore struct {
	builds  atomic.Int32
	revenue decimal.Decimal
	gate    chan struct{}
	err     error
}

func (f *fakeStore) AppointmentsByStatus(_ context.Context, from, to time.Time) (map[string]int, error) {
	f.builds.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if to.Sub(from) != 24*time.Hour {
		return nil, errors.New("window is not one day")
	}
	return map[string]int{"pending": 2, "completed": 3}, f.err
}

func (f *fakeStore) CompletedSales(context.Context, time.Time, time.Time) (dashboard.SalesTotals, error) {
	return dashboard.SalesTotals{Count: 3, Revenue: f.revenue}, nil
}

func (f *fakeStore) StockCounts(context.Context) (dashboard.StockCounts, error) {
	return dashboard.StockCounts{Low: 1, Out: 2}, nil
}

func (f *fakeStore) ActiveClients(context.Context) (int, error) {
	return 42, nil
}

func newService(t *testing.T, store dashboard.Store) *dashboard.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return dashboard.NewService(store, dashboard.NewCache(client, time.Minute), time.UTC, nil)
}

var day = time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

func TestSummaryCounters(t *testing.T) {
	store := &fakeStore{revenue: decimal.RequireFromString("35.00")}
	svc := newService(t, store)

	s, err := svc.Summary(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", s.Day)
	assert.Equal(t, 5, s.AppointmentsTotal)
	assert.Equal(t, 3, s.AppointmentsByStatus["completed"])
	assert.Equal(t, 3, s.CompletedSales)
	assert.True(t, s.Revenue.Equal(decimal.RequireFromString("35.00")))
	assert.Equal(t, 1, s.LowStockProducts)
	assert.Equal(t, 2, s.OutOfStockProducts)
	assert.Equal(t, 42, s.ActiveClients)
}

func TestSummaryIsCachedUntilInvalidated(t *testing.T) {
	store := &fakeStore{revenue: decimal.RequireFromString("10.00")}
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.Summary(ctx, day)
	require.NoError(t, err)
	_, err = svc.Summary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.builds.Load())

	store.revenue = decimal.RequireFromString("25.00")
	require.NoError(t, svc.Invalidate(ctx))
	s, err := svc.Summary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.builds.Load())
	assert.True(t, s.Revenue.Equal(decimal.RequireFromString("25.00")))
}

func TestConcurrentMissesShareOneBuild(t *testing.T) {
	store := &fakeStore{gate: make(chan struct{})}
	svc := newService(t, store)

	var wg sync.WaitGroup
	results := make([]dashboard.Summary, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.Summary(context.Background(), day)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	require.Eventually(t, func() bool { return store.builds.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(t, int32(1), store.builds.Load())
	for _, s := range results {
		assert.Equal(t, 42, s.ActiveClients)
	}
}

func TestSummaryWithoutCache(t *testing.T) {
	store := &fakeStore{}
	svc := dashboard.NewService(store, nil, time.UTC, nil)
	_, err := svc.Summary(context.Background(), day)
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.builds.Load())
	assert.NoError(t, svc.Invalidate(context.Background()))
}

func TestSummaryPropagatesStoreErrors(t *testing.T) {
	svc := newService(t, &fakeStore{err: errors.New("boom")})
	_, err := svc.Summary(context.Background(), day)
	require.Error(t, err)
}

func TestLowStockSnapshotReachesSummary(t *testing.T) {
	svc := newService(t, &fakeStore{})
	ctx := context.Background()
	_, err := svc.Summary(ctx, day)
	require.NoError(t, err)

	items := []dashboard.LowStockItem{{ProductID: 7, Name: "Pomada", StockQty: 0, MinStock: 5, Level: "out"}}
	require.NoError(t, svc.RecordLowStock(ctx, items))

	s, err := svc.Summary(ctx, day)
	require.NoError(t, err)
	require.Len(t, s.LowStock, 1)
	assert.Equal(t, "Pomada", s.LowStock[0].Name)
}

func TestHandlerValidatesDay(t *testing.T) {
	r := chi.NewRouter()
	dashboard.NewHandler(nil, newService(t, &fakeStore{})).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?day=14-03-2026", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?day=2026-03-14", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var s dashboard.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, "2026-03-14", s.Day)
}
