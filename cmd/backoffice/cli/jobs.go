// Package cli holds operator helpers invoked from the backoffice binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/barberia/backoffice/jobs"
)

type triggerer interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
}

// Jobs runs the "jobs trigger" and "jobs stats" subcommands.
type Jobs struct {
	trigger   triggerer
	inspector jobs.QueueInspector
	out       io.Writer
	closers   []io.Closer
}

// NewJobs connects to the queue and writes results to out.
func NewJobs(opts asynq.RedisConnOpt, out io.Writer) *Jobs {
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &Jobs{trigger: client, inspector: inspector, out: out, closers: []io.Closer{client, inspector}}
}

// Close releases the client and inspector.
func (j *Jobs) Close() error {
	var errs []error
	for _, c := range j.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run dispatches args: "trigger <task>" or "stats".
func (j *Jobs) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: expected trigger or stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("jobs trigger: task name required (%s, %s)", jobs.TaskLowStockScan, jobs.TaskDashboardWarmup)
		}
		info, err := j.trigger.Trigger(ctx, args[1])
		if errors.Is(err, asynq.ErrDuplicateTask) {
			_, werr := fmt.Fprintf(j.out, "%s already queued\n", args[1])
			return werr
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(j.out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return err
	case "stats":
		stats, err := jobs.ReadQueueStats(j.inspector)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(j.out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d processed_today=%d failed_today=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Processed, stats.Failed)
		return err
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}
