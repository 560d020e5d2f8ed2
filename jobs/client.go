package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// manualTriggerWindow deduplicates repeated manual triggers of the same task.
const manualTriggerWindow = time.Minute

// Client enqueues tasks on demand.
type Client struct {
	client *asynq.Client
}

// NewClient opens an asynq client.
func NewClient(redis asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redis)}
}

// Trigger enqueues the named task with its default payload. A second trigger
// of the same task inside a minute returns asynq.ErrDuplicateTask.
func (c *Client) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs: client not configured")
	}
	task, err := TaskByName(name, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(manualTriggerWindow))
}

// Close releases the client connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
