package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/jobs"
)

type fakeTrigger struct {
	names []string
	err   error
}

func (f *fakeTrigger) Trigger(_ context.Context, name string) (*asynq.TaskInfo, error) {
	f.names = append(f.names, name)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "t-1", Type: name, Queue: jobs.QueueDefault}, nil
}

type fakeInspector struct{}

func (fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}, nil
}

func TestTriggerPrintsTask(t *testing.T) {
	var out bytes.Buffer
	trig := &fakeTrigger{}
	j := &Jobs{trigger: trig, out: &out}

	require.NoError(t, j.Run(context.Background(), []string{"trigger", jobs.TaskLowStockScan}))
	assert.Equal(t, []string{jobs.TaskLowStockScan}, trig.names)
	assert.Contains(t, out.String(), "enqueued inventory:low_stock_scan id=t-1")
}

func TestTriggerDuplicateIsNotAnError(t *testing.T) {
	var out bytes.Buffer
	j := &Jobs{trigger: &fakeTrigger{err: asynq.ErrDuplicateTask}, out: &out}

	require.NoError(t, j.Run(context.Background(), []string{"trigger", jobs.TaskDashboardWarmup}))
	assert.Contains(t, out.String(), "already queued")
}

func TestStatsAndUsageErrors(t *testing.T) {
	var out bytes.Buffer
	j := &Jobs{trigger: &fakeTrigger{}, inspector: fakeInspector{}, out: &out}

	require.NoError(t, j.Run(context.Background(), []string{"stats"}))
	assert.Contains(t, out.String(), "pending=3")
	assert.Contains(t, out.String(), "retry=1")

	require.Error(t, j.Run(context.Background(), nil))
	require.Error(t, j.Run(context.Background(), []string{"trigger"}))
	require.Error(t, j.Run(context.Background(), []string{"purge"}))
}
