// Package scheduler implements C5: the status scheduler that advances
// items between SCHEDULED -> ACTIVE -> COMPLETED on wall-clock time.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Invalidator is notified after a sweep changes item status, so a read
// cache (internal/cache) does not serve a stale status/current_price past
// the transition (SPEC_FULL.md §4.6).
type Invalidator interface {
	InvalidateItem(ctx context.Context, itemID uint64)
}

// Scheduler ticks on a fixed interval and reconciles item status with two
// guarded bulk UPDATEs rather than a per-item loop — cheaper than spec.md
// §4.5's per-item description and equivalent in effect. It emits no events;
// this is the documented simplification in spec.md §9.
type Scheduler struct {
	pool        *pgxpool.Pool
	tick        time.Duration
	invalidator Invalidator
	logger      *slog.Logger
}

func New(pool *pgxpool.Pool, tick time.Duration, invalidator Invalidator, logger *slog.Logger) *Scheduler {
	return &Scheduler{pool: pool, tick: tick, invalidator: invalidator, logger: logger}
}

// Run blocks, sweeping every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("scheduler sweep failed", "error", err)
			}
		}
	}
}

// sweep runs the two conditional transitions. The WHERE clauses guard
// against clobbering a COMPLETED set by a concurrent BuyNowExecuted
// projection (spec.md §4.5, §9 Open Question).
func (s *Scheduler) sweep(ctx context.Context) error {
	started, err := s.activateStarted(ctx)
	if err != nil {
		return err
	}
	ended, err := s.completeEnded(ctx)
	if err != nil {
		return err
	}
	for _, id := range append(started, ended...) {
		s.invalidator.InvalidateItem(ctx, id)
	}
	return nil
}

func (s *Scheduler) activateStarted(ctx context.Context) ([]uint64, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE items SET status = 'ACTIVE'
		WHERE status = 'SCHEDULED' AND start_time <= now()
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (s *Scheduler) completeEnded(ctx context.Context) ([]uint64, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE items SET status = 'COMPLETED'
		WHERE status <> 'COMPLETED' AND end_time <= now()
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func scanIDs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]uint64, error) {
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
