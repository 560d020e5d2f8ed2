package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/barberia/backoffice/internal/dashboard"
	"github.com/barberia/backoffice/internal/inventory"
	jobmetrics "github.com/barberia/backoffice/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockSource lists products at or below their minimum stock.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.Product, error)
}

// SnapshotStore keeps the latest scan for the dashboard.
type SnapshotStore interface {
	RecordLowStock(ctx context.Context, items []dashboard.LowStockItem) error
}

// LowStockScanJob logs low and out of stock products and publishes the list.
type LowStockScanJob struct {
	Inventory LowStockSource
	Snapshots SnapshotStore
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(source LowStockSource, snapshots SnapshotStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Inventory: source,
		Snapshots: snapshots,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLowStockScan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	run := j.metrics().Begin(TaskLowStockScan)
	defer func() {
		resultErr = run.Finish(resultErr)
	}()

	logger := j.logger()
	products, err := j.Inventory.LowStock(ctx)
	if err != nil {
		logger.Error("list low stock products", slog.Any("error", err))
		return err
	}

	now := j.now()
	items := make([]dashboard.LowStockItem, 0, len(products))
	counts := map[inventory.StockLevel]int{inventory.StockLow: 0, inventory.StockOut: 0}
	for _, p := range products {
		level := inventory.StockStatus(p)
		if level == inventory.StockOK {
			continue
		}
		counts[level]++
		items = append(items, dashboard.LowStockItem{
			ProductID: p.ID,
			Name:      p.Name,
			StockQty:  p.StockQty,
			MinStock:  p.MinStock,
			Level:     string(level),
			ScannedAt: now,
		})
		logger.Warn("product below minimum stock",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int("stock_qty", p.StockQty),
			slog.Int("min_stock", p.MinStock),
			slog.String("level", string(level)),
		)
	}
	for level, n := range counts {
		j.metrics().SetLowStock(string(level), n)
	}

	if j.Snapshots != nil {
		if err := j.Snapshots.RecordLowStock(ctx, items); err != nil {
			logger.Error("store low stock snapshot", slog.Any("error", err))
			return err
		}
	}
	logger.Info("completed low stock scan",
		slog.Int("low", counts[inventory.StockLow]),
		slog.Int("out", counts[inventory.StockOut]),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
