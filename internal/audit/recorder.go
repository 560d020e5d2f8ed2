package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/barberia/backoffice/internal/shared"
)

// Appender persists audit entries. Implementations must write through the
// caller's transaction so an entry commits or rolls back with the change it
// describes.
type Appender interface {
	Append(ctx context.Context, entry Entry) error
}

// Recorder turns changes into audit entries.
type Recorder struct {
	now func() time.Time
}

// NewRecorder builds a Recorder using the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// WithClock overrides the clock, used by tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	return &Recorder{now: now}
}

// Record validates the change, snapshots it and appends it.
func (r *Recorder) Record(ctx context.Context, app Appender, change Change) error {
	if app == nil {
		return fmt.Errorf("audit: appender not configured")
	}
	entry, err := r.build(ctx, change)
	if err != nil {
		return err
	}
	if err := app.Append(ctx, entry); err != nil {
		return fmt.Errorf("audit: append %s %s #%d: %w", change.Operation, change.Table, change.RecordID, err)
	}
	return nil
}

func (r *Recorder) build(ctx context.Context, change Change) (Entry, error) {
	if !IsTracked(change.Table) {
		return Entry{}, fmt.Errorf("%w: audit: table %q is not tracked", shared.ErrValidation, change.Table)
	}
	if !change.Operation.Valid() {
		return Entry{}, fmt.Errorf("%w: audit: unknown operation %q", shared.ErrValidation, change.Operation)
	}
	if change.RecordID <= 0 {
		return Entry{}, fmt.Errorf("%w: audit: record id required", shared.ErrValidation)
	}
	switch change.Operation {
	case OpInsert:
		if change.Old != nil || change.New == nil {
			return Entry{}, fmt.Errorf("%w: audit: INSERT needs only a new snapshot", shared.ErrValidation)
		}
	case OpDelete:
		if change.New != nil || change.Old == nil {
			return Entry{}, fmt.Errorf("%w: audit: DELETE needs only an old snapshot", shared.ErrValidation)
		}
	case OpUpdate:
		if change.Old == nil || change.New == nil {
			return Entry{}, fmt.Errorf("%w: audit: UPDATE needs both snapshots", shared.ErrValidation)
		}
	}

	oldData, err := snapshot(change.Old)
	if err != nil {
		return Entry{}, err
	}
	newData, err := snapshot(change.New)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Table:     change.Table,
		Operation: change.Operation,
		RecordID:  change.RecordID,
		OldData:   oldData,
		NewData:   newData,
		At:        r.now().UTC(),
	}
	if actor, ok := shared.ActorFromContext(ctx); ok {
		if actor.Username != "" {
			user := actor.Username
			entry.AppUser = &user
		}
		if actor.IP != "" {
			ip := actor.IP
			entry.OriginIP = &ip
		}
	}
	return entry, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("audit: encode snapshot: %w", err)
	}
	return data, nil
}
