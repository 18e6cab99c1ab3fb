// Package eventstore implements C1: the append-only event log and its
// optimistic concurrency gate.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-core/internal/auction"
	infradb "github.com/floroz/auction-core/internal/infra/database"
)

// uniqueViolation is the Postgres error code for a unique index conflict.
// The (aggregate_id, version) unique index is the store's sole OCC gate.
const uniqueViolation = "23505"

// ErrSerialization is the store's AppendError variant for a failed JSON
// marshal of the event payload (spec.md §4.1).
var ErrSerialization = errors.New("eventstore: serialization error")

// ErrStorage is the store's AppendError variant for any database failure
// other than a version conflict.
var ErrStorage = errors.New("eventstore: storage error")

// Publisher is the bus-facing dependency of the store: publish one event,
// partitioned by aggregate ID (C2).
type Publisher interface {
	Publish(ctx context.Context, event *auction.Event) error
}

// lockTimeout bounds how long an append waits behind a concurrent writer on
// the same aggregate row before giving up, so contention surfaces as a fast
// ErrStorage error rather than a stall. A lock timeout is not a version
// conflict: the command handler reports it as ErrInternal without retrying.
const lockTimeout = 250 * time.Millisecond

// Store is the Postgres-backed implementation of auction.EventStore.
type Store struct {
	pool      *pgxpool.Pool
	publisher Publisher
	logger    *slog.Logger
	txManager *infradb.TransactionManager
}

func New(pool *pgxpool.Pool, publisher Publisher, logger *slog.Logger) *Store {
	return &Store{
		pool:      pool,
		publisher: publisher,
		logger:    logger,
		txManager: infradb.NewTransactionManager(pool, lockTimeout),
	}
}

var _ auction.EventStore = (*Store)(nil)

// NextVersion returns max(version)+1 for the aggregate, or 1 if none exists.
func (s *Store) NextVersion(ctx context.Context, aggregateID uint64) (int64, error) {
	var version int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM events WHERE aggregate_id = $1
	`, aggregateID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	return version, nil
}

// AppendAndPublish inserts the event row under the (aggregate_id, version)
// uniqueness gate, then publishes it. A publish failure is logged and
// swallowed: the event is already durable, the caller still sees success
// (spec.md §4.1 step 3; see SPEC_FULL.md "No outbox table").
func (s *Store) AppendAndPublish(ctx context.Context, aggregateID uint64, eventType auction.EventType, data any, expectedVersion int64) (*auction.Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	event := &auction.Event{
		AggregateID: aggregateID,
		EventType:   eventType,
		Data:        payload,
		Version:     expectedVersion,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin append tx: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO events (aggregate_id, event_type, data, version)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, aggregateID, string(eventType), payload, expectedVersion).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, auction.ErrVersionConflict
		}
		return nil, fmt.Errorf("%w: append event: %w", ErrStorage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit append: %w", ErrStorage, err)
	}

	if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
		s.logger.Error("publish failed after durable append, relying on replay",
			"aggregate_id", aggregateID, "event_id", event.ID, "version", event.Version, "error", pubErr)
	}

	return event, nil
}

// ReplayFrom returns up to limit events with id > fromID, in id order, for the recovery job mentioned
// in spec.md §9 ("a replay job is recommended but out of scope"). Exposed so
// an operator-invoked cmd can be added without touching the store.
func (s *Store) ReplayFrom(ctx context.Context, fromID uint64, limit int) ([]*auction.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, aggregate_id, event_type, data, version, created_at
		FROM events WHERE id > $1 ORDER BY id ASC LIMIT $2
	`, fromID, limit)
	if err != nil {
		return nil, fmt.Errorf("replay events: %w", err)
	}
	defer rows.Close()

	var events []*auction.Event
	for rows.Next() {
		var e auction.Event
		var eventType string
		if err := rows.Scan(&e.ID, &e.AggregateID, &eventType, &e.Data, &e.Version, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = auction.EventType(eventType)
		events = append(events, &e)
	}
	return events, rows.Err()
}
