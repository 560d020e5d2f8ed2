package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Job binds a task type to its handler and, optionally, a cron schedule.
// Task is the template enqueued by the scheduler; it is required when Cron
// is set.
type Job struct {
	Type    string
	Handler asynq.HandlerFunc
	Cron    string
	Task    *asynq.Task
}

// WorkerConfig collects what the worker needs to start.
type WorkerConfig struct {
	Redis       asynq.RedisConnOpt
	Logger      *slog.Logger
	Concurrency int
	Location    *time.Location
	Jobs        []Job
}

// Worker processes the default queue and, when any job is scheduled, runs the
// cron scheduler beside it.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker registers every job and its schedule. An invalid cron expression
// fails here rather than at startup of the scheduler.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Redis == nil {
		return nil, errors.New("worker: redis connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	w := &Worker{mux: asynq.NewServeMux(), logger: logger}
	w.server = asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:  cfg.Concurrency,
		Queues:       map[string]int{QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(w.reportFailure),
	})

	for _, job := range cfg.Jobs {
		if job.Type == "" || job.Handler == nil {
			return nil, fmt.Errorf("worker: job %q has no handler", job.Type)
		}
		w.mux.HandleFunc(job.Type, job.Handler)
		if job.Cron == "" {
			continue
		}
		if job.Task == nil {
			return nil, fmt.Errorf("worker: job %q scheduled without a task", job.Type)
		}
		if w.scheduler == nil {
			w.scheduler = asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{Location: cfg.Location})
		}
		if _, err := w.scheduler.Register(job.Cron, job.Task); err != nil {
			return nil, fmt.Errorf("worker: schedule %s %q: %w", job.Type, job.Cron, err)
		}
	}
	return w, nil
}

func (w *Worker) reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	w.logger.Error("task failed",
		slog.String("type", task.Type()),
		slog.Int("retry", retried),
		slog.Int("max_retry", maxRetry),
		slog.Any("error", err))
}

// Run starts the server and scheduler and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("worker: start scheduler: %w", err)
		}
	}
	<-ctx.Done()
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}
