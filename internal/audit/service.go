package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/barberia/backoffice/internal/shared"
)

// Reader is the read side of the audit trail.
type Reader interface {
	List(ctx context.Context, f Filter) ([]Entry, int, error)
}

// Service exposes the read-only timeline. Entries are never updated or deleted.
type Service struct {
	repo Reader
}

// NewService creates the audit timeline service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// List returns a page of entries.
func (s *Service) List(ctx context.Context, f Filter) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if f.Operation != "" && !f.Operation.Valid() {
		return Result{}, fmt.Errorf("%w: unknown operation %q", shared.ErrValidation, f.Operation)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return Result{}, fmt.Errorf("%w: from is after to", shared.ErrValidation)
	}
	f.Page = f.Page.Normalize()
	entries, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Result{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Result{Entries: entries, Pagination: shared.NewPagination(f.Page, total)}, nil
}

// ExportCSV renders up to maxRows matching entries as CSV, newest first.
func (s *Service) ExportCSV(ctx context.Context, f Filter, maxRows int) ([]byte, error) {
	var all []Entry
	perPage := shared.PageRequest{PerPage: maxRows}.Limit()
	for page := 1; len(all) < maxRows; page++ {
		f.Page = shared.PageRequest{Page: page, PerPage: perPage}
		res, err := s.List(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Entries...)
		if len(res.Entries) == 0 || page >= res.Pagination.TotalPages {
			break
		}
	}
	if len(all) > maxRows {
		all = all[:maxRows]
	}
	return WriteCSV(all)
}

// WriteCSV encodes entries with a header row.
func WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "table", "operation", "record_id", "db_user", "app_user", "origin_ip", "old_data", "new_data"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			e.At.UTC().Format(time.RFC3339),
			e.Table,
			string(e.Operation),
			strconv.FormatInt(e.RecordID, 10),
			e.DBUser,
			deref(e.AppUser),
			deref(e.OriginIP),
			string(e.OldData),
			string(e.NewData),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
