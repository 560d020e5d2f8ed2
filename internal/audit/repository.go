package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/barberia/backoffice/internal/platform/db"
)

// Store reads and appends audit_entries through any pgx querier. Bound to a
// pgx.Tx it is the Appender used inside write transactions.
type Store struct {
	q db.DBTX
}

// NewStore wraps a pool or a transaction.
func NewStore(q db.DBTX) *Store {
	return &Store{q: q}
}

var _ Appender = (*Store)(nil)

const insertEntrySQL = `INSERT INTO audit_entries (table_name, operation, record_id, old_data, new_data, db_user, app_user, at, origin_ip)
VALUES ($1, $2, $3, $4, $5, current_user, $6, $7, $8)`

// Append inserts the entry. db_user is resolved by Postgres.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.q.Exec(ctx, insertEntrySQL,
		e.Table, string(e.Operation), e.RecordID,
		nullableJSON(e.OldData), nullableJSON(e.NewData),
		e.AppUser, e.At, e.OriginIP,
	)
	if err != nil {
		return db.Classify(err)
	}
	return nil
}

const listEntriesSQL = `SELECT id, table_name, operation, record_id, old_data, new_data, db_user, app_user, at, origin_ip,
       COUNT(*) OVER() AS total
FROM audit_entries
WHERE ($1::text IS NULL OR table_name = $1)
  AND ($2::text IS NULL OR operation = $2)
  AND ($3::bigint IS NULL OR record_id = $3)
  AND ($4::timestamptz IS NULL OR at >= $4)
  AND ($5::timestamptz IS NULL OR at < $5)
ORDER BY at DESC, id DESC
LIMIT $6 OFFSET $7`

// List returns one page of entries, newest first, and the total match count.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	page := f.Page.Normalize()
	var recordID pgtype.Int8
	if f.RecordID != nil {
		recordID = pgtype.Int8{Int64: *f.RecordID, Valid: true}
	}
	rows, err := s.q.Query(ctx, listEntriesSQL,
		optionalText(f.Table), optionalText(string(f.Operation)), recordID,
		toPgTime(f.From), toPgTime(f.To),
		page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("audit: list: %w", err))
	}
	defer rows.Close()

	var (
		entries []Entry
		total   int
	)
	for rows.Next() {
		var (
			e  Entry
			op string
		)
		if err := rows.Scan(&e.ID, &e.Table, &op, &e.RecordID, &e.OldData, &e.NewData, &e.DBUser, &e.AppUser, &e.At, &e.OriginIP, &total); err != nil {
			return nil, 0, db.Classify(fmt.Errorf("audit: scan: %w", err))
		}
		e.Operation = Operation(op)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(err)
	}
	return entries, total, nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
