package locking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cargodesk/cargodesk/pkg/repository"
)

const lockTable = "resource_locks"

// PostgresStore implements Store on top of the resource_locks table. The
// executor routes statements through the ambient transaction when one is
// present in the context, so GetForUpdate and the subsequent Upsert/Delete
// observe the same row under one row lock.
type PostgresStore struct {
	executor repository.SQLExecutor
}

// NewPostgresStore creates a lock store backed by PostgreSQL
func NewPostgresStore(executor repository.SQLExecutor) *PostgresStore {
	return &PostgresStore{executor: executor}
}

// Now reads the database server clock. All expiry comparisons use this
// clock, never the application host's.
func (s *PostgresStore) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.executor.QueryRowContext(ctx, "SELECT NOW()").Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now, nil
}

// Get returns the lock row for the key, or nil if absent
func (s *PostgresStore) Get(ctx context.Context, resourceID string, lockType LockType) (*Lock, error) {
	query := fmt.Sprintf(
		"SELECT resource_id, lock_type, locked_by, acquired_at, expires_at FROM %s WHERE resource_id = $1 AND lock_type = $2",
		lockTable,
	)
	return s.scanLock(ctx, query, resourceID, lockType)
}

// GetForUpdate returns the lock row with a row-level lock held until the
// ambient transaction ends
func (s *PostgresStore) GetForUpdate(ctx context.Context, resourceID string, lockType LockType) (*Lock, error) {
	query := fmt.Sprintf(
		"SELECT resource_id, lock_type, locked_by, acquired_at, expires_at FROM %s WHERE resource_id = $1 AND lock_type = $2 FOR UPDATE",
		lockTable,
	)
	return s.scanLock(ctx, query, resourceID, lockType)
}

func (s *PostgresStore) scanLock(ctx context.Context, query, resourceID string, lockType LockType) (*Lock, error) {
	lock := &Lock{}
	err := s.executor.QueryRowContext(ctx, query, resourceID, string(lockType)).
		Scan(&lock.ResourceID, &lock.Type, &lock.LockedBy, &lock.AcquiredAt, &lock.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lock row: %w", err)
	}
	return lock, nil
}

// Upsert inserts or overwrites the lock row for the key
func (s *PostgresStore) Upsert(ctx context.Context, lock *Lock) error {
	query := fmt.Sprintf(`
INSERT INTO %s (resource_id, lock_type, locked_by, acquired_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (resource_id, lock_type) DO UPDATE
SET locked_by = EXCLUDED.locked_by,
    acquired_at = EXCLUDED.acquired_at,
    expires_at = EXCLUDED.expires_at`, lockTable)

	if _, err := s.executor.ExecContext(ctx, query,
		lock.ResourceID, string(lock.Type), lock.LockedBy, lock.AcquiredAt, lock.ExpiresAt); err != nil {
		return fmt.Errorf("failed to write lock row: %w", err)
	}
	return nil
}

// Delete removes the lock row for the key, if present
func (s *PostgresStore) Delete(ctx context.Context, resourceID string, lockType LockType) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE resource_id = $1 AND lock_type = $2", lockTable)
	if _, err := s.executor.ExecContext(ctx, query, resourceID, string(lockType)); err != nil {
		return fmt.Errorf("failed to delete lock row: %w", err)
	}
	return nil
}

// DeleteForResource removes every lock row for a resource
func (s *PostgresStore) DeleteForResource(ctx context.Context, resourceID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE resource_id = $1", lockTable)
	result, err := s.executor.ExecContext(ctx, query, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lock rows: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes every row whose expiry has passed, comparing
// against the database clock
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= NOW()", lockTable)
	result, err := s.executor.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired lock rows: %w", err)
	}
	return result.RowsAffected()
}
