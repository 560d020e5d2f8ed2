// Package audittest provides an in-memory audit trail for tests.
package audittest

import (
	"context"
	"sync"

	"github.com/barberia/backoffice/internal/audit"
)

// Log collects appended entries.
type Log struct {
	mu      sync.Mutex
	entries []audit.Entry
	Err     error
}

// Append implements audit.Appender.
func (l *Log) Append(_ context.Context, e audit.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	e.ID = int64(len(l.entries) + 1)
	e.DBUser = "test"
	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (l *Log) Entries() []audit.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]audit.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Truncate drops entries past n, mirroring a rollback.
func (l *Log) Truncate(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < len(l.entries) {
		l.entries = l.entries[:n]
	}
}

// Filter returns entries for one table.
func (l *Log) Filter(table string) []audit.Entry {
	var out []audit.Entry
	for _, e := range l.Entries() {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}
