package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/barberia/backoffice/internal/dashboard"
	jobmetrics "github.com/barberia/backoffice/internal/jobs"
)

// SummaryBuilder produces a dashboard summary for a day.
type SummaryBuilder interface {
	Summary(ctx context.Context, day time.Time) (dashboard.Summary, error)
	Today() time.Time
}

// DashboardWarmupJob fills the dashboard cache ahead of the first request.
type DashboardWarmupJob struct {
	Dashboard SummaryBuilder
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(builder SummaryBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{Dashboard: builder, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDashboardWarmup.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	day := j.Dashboard.Today()
	if payload.Day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", payload.Day, day.Location())
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	run := metrics.Begin(TaskDashboardWarmup)
	defer func() {
		resultErr = run.Finish(resultErr)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskDashboardWarmup))

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	summary, err := j.Dashboard.Summary(warmCtx, day)
	if err != nil {
		logger.Error("warm dashboard", slog.Any("error", err))
		return err
	}
	logger.Info("dashboard warmed", slog.String("day", summary.Day), slog.Int("appointments", summary.AppointmentsTotal))
	return nil
}
