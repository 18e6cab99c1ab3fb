// Package database provides a transaction manager that bounds how long an
// event append can wait behind a concurrent writer on the same aggregate,
// so a hot item under contention fails fast with an error instead of
// queuing behind Postgres's row lock indefinitely.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionManager implements pgx transaction semantics with a bounded
// lock wait, used by eventstore.Store around the events insert.
type TransactionManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTransactionManager creates a transaction manager. lockTimeout of 0
// disables the SET LOCAL lock_timeout guard.
func NewTransactionManager(pool *pgxpool.Pool, lockTimeout time.Duration) *TransactionManager {
	return &TransactionManager{pool: pool, lockTimeout: lockTimeout}
}

// BeginTx starts a transaction and, if configured, bounds how long it will
// wait to acquire a row lock.
func (m *TransactionManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if m.lockTimeout > 0 {
		timeoutMs := int(m.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMs)); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return tx, nil
}
