package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auction-core/internal/scheduler"
	"github.com/floroz/auction-core/internal/testhelpers"
)

// recordingInvalidator collects the item IDs invalidated during a sweep, so
// tests can assert the scheduler notifies the cache on every transition.
type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uint64
}

func (r *recordingInvalidator) InvalidateItem(_ context.Context, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recordingInvalidator) seen() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.ids))
	copy(out, r.ids)
	return out
}

func insertItem(t *testing.T, pool *pgxpool.Pool, status string, start, end time.Time) uint64 {
	t.Helper()
	var id uint64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO items (seller, title, description, starting_price, current_price, buy_now_price, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, uuid.New(), "Scheduler Item", "", 10_000, 10_000, 0, start, end, status).Scan(&id)
	require.NoError(t, err)
	return id
}

func itemStatus(t *testing.T, pool *pgxpool.Pool, id uint64) string {
	t.Helper()
	var status string
	err := pool.QueryRow(context.Background(), "SELECT status FROM items WHERE id = $1", id).Scan(&status)
	require.NoError(t, err)
	return status
}

// TestScheduler_Sweep_Integration exercises the two bulk conditional
// transitions (spec.md §4.5) against a real Postgres instance, confirming
// SCHEDULED->ACTIVE and ACTIVE->COMPLETED fire on wall-clock time and that
// a COMPLETED item (e.g. from a prior BuyNowExecuted) is never reopened.
func TestScheduler_Sweep_Integration(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../migrations")
	defer testDB.Close()
	testhelpers.CleanDatabase(t, testDB.Pool)

	now := time.Now()

	dueToStart := insertItem(t, testDB.Pool, "SCHEDULED", now.Add(-time.Minute), now.Add(time.Hour))
	notYetStarted := insertItem(t, testDB.Pool, "SCHEDULED", now.Add(time.Hour), now.Add(2*time.Hour))
	dueToEnd := insertItem(t, testDB.Pool, "ACTIVE", now.Add(-2*time.Hour), now.Add(-time.Minute))
	stillActive := insertItem(t, testDB.Pool, "ACTIVE", now.Add(-time.Hour), now.Add(time.Hour))
	alreadyCompleted := insertItem(t, testDB.Pool, "COMPLETED", now.Add(-3*time.Hour), now.Add(-2*time.Hour))

	invalidator := &recordingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := scheduler.New(testDB.Pool, 10*time.Millisecond, invalidator, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	assert.Equal(t, "ACTIVE", itemStatus(t, testDB.Pool, dueToStart))
	assert.Equal(t, "SCHEDULED", itemStatus(t, testDB.Pool, notYetStarted))
	assert.Equal(t, "COMPLETED", itemStatus(t, testDB.Pool, dueToEnd))
	assert.Equal(t, "ACTIVE", itemStatus(t, testDB.Pool, stillActive))
	assert.Equal(t, "COMPLETED", itemStatus(t, testDB.Pool, alreadyCompleted))

	seen := invalidator.seen()
	assert.Contains(t, seen, dueToStart)
	assert.Contains(t, seen, dueToEnd)
	assert.NotContains(t, seen, notYetStarted)
	assert.NotContains(t, seen, stillActive)
	assert.NotContains(t, seen, alreadyCompleted)
}
