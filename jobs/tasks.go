package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan lists products at or below their minimum stock.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskDashboardWarmup builds today's dashboard summary into the cache.
	TaskDashboardWarmup = "dashboard:warmup"
)

// LowStockScanPayload parameterises a scan.
type LowStockScanPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// DashboardWarmupPayload selects the day to warm; zero means today.
type DashboardWarmupPayload struct {
	Day string `json:"day,omitempty"`
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data, asynq.Queue(QueueDefault), asynq.MaxRetry(2)), nil
}

// NewDashboardWarmupTask constructs the warmup task.
func NewDashboardWarmupTask(payload DashboardWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// TaskByName builds a task with its default payload for manual triggers.
func TaskByName(name string, now time.Time) (*asynq.Task, error) {
	switch name {
	case TaskLowStockScan:
		return NewLowStockScanTask(LowStockScanPayload{RequestedAt: now})
	case TaskDashboardWarmup:
		return NewDashboardWarmupTask(DashboardWarmupPayload{})
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}
