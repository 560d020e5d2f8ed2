package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/barberia/backoffice/internal/shared"
)

// Service builds and caches daily summaries.
type Service struct {
	store  Store
	cache  *Cache
	group  singleflight.Group
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the store with the cache. cache may be nil; loc defaults to
// time.Local.
func NewService(store Store, cache *Cache, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, loc: loc, logger: logger, now: time.Now}
}

// Today returns the current day in the service location.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// Summary returns the counters for day, served from cache when the version
// matches. Concurrent misses for the same key share one build.
func (s *Service) Summary(ctx context.Context, day time.Time) (Summary, error) {
	start, _ := dayBounds(day, s.loc)
	label := start.Format(dayLayout)

	key, err := s.cache.SummaryKey(ctx, label)
	if err != nil {
		s.logger.Warn("dashboard cache version unavailable", slog.Any("error", err))
		return s.build(ctx, day)
	}
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("dashboard cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		return cached, nil
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		summary, err := s.build(context.WithoutCancel(ctx), day)
		if err != nil {
			return Summary{}, err
		}
		if err := s.cache.Put(context.WithoutCancel(ctx), key, summary); err != nil {
			s.logger.Warn("dashboard cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return summary, nil
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

func (s *Service) build(ctx context.Context, day time.Time) (Summary, error) {
	from, to := dayBounds(day, s.loc)
	summary := Summary{Day: from.Format(dayLayout), GeneratedAt: s.now().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byStatus, err := s.store.AppointmentsByStatus(ctx, from, to)
		if err != nil {
			return err
		}
		summary.AppointmentsByStatus = byStatus
		for _, n := range byStatus {
			summary.AppointmentsTotal += n
		}
		return nil
	})
	g.Go(func() error {
		totals, err := s.store.CompletedSales(ctx, from, to)
		if err != nil {
			return err
		}
		summary.CompletedSales = totals.Count
		summary.Revenue = totals.Revenue
		return nil
	})
	g.Go(func() error {
		counts, err := s.store.StockCounts(ctx)
		if err != nil {
			return err
		}
		summary.LowStockProducts = counts.Low
		summary.OutOfStockProducts = counts.Out
		return nil
	})
	g.Go(func() error {
		n, err := s.store.ActiveClients(ctx)
		if err != nil {
			return err
		}
		summary.ActiveClients = n
		return nil
	})
	g.Go(func() error {
		items, err := s.cache.LowStock(ctx)
		if err != nil {
			s.logger.Warn("low stock snapshot unavailable", slog.Any("error", err))
			return nil
		}
		summary.LowStock = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("build dashboard summary: %w", err)
	}
	if summary.AppointmentsByStatus == nil {
		summary.AppointmentsByStatus = map[string]int{}
	}
	return summary, nil
}

// Invalidate drops every cached summary. Write paths call it after commit.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm builds and caches the summary for today.
func (s *Service) Warm(ctx context.Context) (Summary, error) {
	return s.Summary(ctx, s.Today())
}

// RecordLowStock stores the latest scan for the dashboard and invalidates
// cached summaries so the next read picks it up.
func (s *Service) RecordLowStock(ctx context.Context, items []LowStockItem) error {
	if err := s.cache.StoreLowStock(ctx, items); err != nil {
		return fmt.Errorf("%w: store low stock snapshot: %v", shared.ErrStorage, err)
	}
	return s.cache.Bump(ctx)
}
