package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/dashboard"
	"github.com/barberia/backoffice/internal/inventory"
	jobmetrics "github.com/barberia/backoffice/internal/jobs"
)

type stubSource struct {
	products []inventory.Product
	err      error
}

func (s stubSource) LowStock(context.Context) ([]inventory.Product, error) {
	return s.products, s.err
}

type stubSnapshots struct {
	items []dashboard.LowStockItem
	calls int
}

func (s *stubSnapshots) RecordLowStock(_ context.Context, items []dashboard.LowStockItem) error {
	s.calls++
	s.items = items
	return nil
}

func TestLowStockScanPublishesSnapshot(t *testing.T) {
	snapshots := &stubSnapshots{}
	job := NewLowStockScanJob(stubSource{products: []inventory.Product{
		{ID: 1, Name: "Pomada", StockQty: 0, MinStock: 5},
		{ID: 2, Name: "Cera", StockQty: 3, MinStock: 5},
		{ID: 3, Name: "Champú", StockQty: 40, MinStock: 5},
	}}, snapshots, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	task, err := NewLowStockScanTask(LowStockScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, 1, snapshots.calls)
	require.Len(t, snapshots.items, 2)
	assert.Equal(t, "out", snapshots.items[0].Level)
	assert.Equal(t, "low", snapshots.items[1].Level)
	assert.Equal(t, 14, snapshots.items[0].ScannedAt.Day())
}

func TestLowStockScanFailureSkipsSnapshot(t *testing.T) {
	snapshots := &stubSnapshots{}
	job := NewLowStockScanJob(stubSource{err: errors.New("db down")}, snapshots, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, nil))
	require.Error(t, err)
	assert.Zero(t, snapshots.calls)
}

func TestLowStockScanRejectsBadPayload(t *testing.T) {
	job := NewLowStockScanJob(stubSource{}, nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubBuilder struct {
	day time.Time
}

func (s *stubBuilder) Summary(_ context.Context, day time.Time) (dashboard.Summary, error) {
	s.day = day
	return dashboard.Summary{Day: day.Format("2006-01-02")}, nil
}

func (s *stubBuilder) Today() time.Time {
	return time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
}

func TestDashboardWarmupDefaultsToToday(t *testing.T) {
	builder := &stubBuilder{}
	job := NewDashboardWarmupJob(builder, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewDashboardWarmupTask(DashboardWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 14, builder.day.Day())

	task, err = NewDashboardWarmupTask(DashboardWarmupPayload{Day: "2026-03-01"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, builder.day.Day())
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "default", body["queue"])
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsHealthReportsQueueStats(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Failed: 2}}, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Pending)
	assert.Equal(t, 2, stats.Failed)
}

func TestJobsHealthInspectorDown(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis: connection refused")}, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTaskByName(t *testing.T) {
	for _, name := range []string{TaskLowStockScan, TaskDashboardWarmup} {
		task, err := TaskByName(name, time.Now())
		require.NoError(t, err, name)
		assert.Equal(t, name, task.Type())
	}
	_, err := TaskByName("mail:send", time.Now())
	require.Error(t, err)
}

func TestNewWorkerRejectsIncompleteJobs(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	require.Error(t, err)

	_, err = NewWorker(WorkerConfig{
		Redis: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Jobs:  []Job{{Type: TaskLowStockScan}},
	})
	require.Error(t, err)
}
