package locking

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/repository"
)

// Metrics receives lock protocol events. The observability package provides
// a Prometheus implementation; NopMetrics is used when none is wired.
type Metrics interface {
	LockAcquired(lockType string)
	LockConflict(lockType string)
	LockReleased(lockType string)
	LocksSwept(count int64)
}

// NopMetrics discards all lock protocol events
type NopMetrics struct{}

func (NopMetrics) LockAcquired(string) {}
func (NopMetrics) LockConflict(string) {}
func (NopMetrics) LockReleased(string) {}
func (NopMetrics) LocksSwept(int64)    {}

// Manager is the lock protocol core. It decides, atomically, whether a
// caller may begin or continue an edit session on a resource, and records
// or releases that decision.
//
// Conflicts are never retried here: a losing acquire surfaces immediately
// so the user decides whether to try again.
type Manager struct {
	store   Store
	tx      repository.TransactionManager
	timeout time.Duration
	logger  logger.Logger
	metrics Metrics
}

// NewManager creates a lock manager. timeout is the logical lock window
// granted on acquire and refresh.
func NewManager(store Store, tx repository.TransactionManager, timeout time.Duration, log logger.Logger, metrics Metrics) *Manager {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Manager{
		store:   store,
		tx:      tx,
		timeout: timeout,
		logger:  log,
		metrics: metrics,
	}
}

// Acquire grants or refreshes the lock on (resourceID, lockType) for
// holderID. The decision runs inside a transaction that holds a row-level
// lock on the key, so exactly one of two racing acquirers wins; the loser
// gets a ConflictError carrying the winner's identity and expiry.
//
// Re-acquire by the current holder succeeds and extends the expiry.
// An expired row is treated as absent and taken over by any holder.
func (m *Manager) Acquire(ctx context.Context, resourceID string, lockType LockType, holderID string) (*Lock, error) {
	if err := validateKey(resourceID, lockType, holderID); err != nil {
		return nil, err
	}

	var lock *Lock
	err := m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var txErr error
		lock, txErr = m.acquireLocked(txCtx, resourceID, lockType, holderID)
		return txErr
	})
	if err != nil {
		if conflict, ok := IsConflict(err); ok {
			m.metrics.LockConflict(string(lockType))
			m.logger.Info("lock conflict",
				"resource_id", resourceID,
				"lock_type", lockType,
				"requested_by", holderID,
				"locked_by", conflict.LockedBy,
				"expires_at", conflict.ExpiresAt,
			)
		}
		return nil, err
	}

	m.metrics.LockAcquired(string(lockType))
	return lock, nil
}

// acquireLocked performs one acquire step under the ambient transaction.
// Callers must hold the transaction; the FOR UPDATE read serializes racing
// acquirers on the same key.
func (m *Manager) acquireLocked(ctx context.Context, resourceID string, lockType LockType, holderID string) (*Lock, error) {
	now, err := m.store.Now(ctx)
	if err != nil {
		return nil, err
	}

	current, err := m.store.GetForUpdate(ctx, resourceID, lockType)
	if err != nil {
		return nil, err
	}

	if current.Active(now) && current.LockedBy != holderID {
		return nil, &ConflictError{
			ResourceID: resourceID,
			Type:       lockType,
			LockedBy:   current.LockedBy,
			ExpiresAt:  current.ExpiresAt,
		}
	}

	lock := &Lock{
		ResourceID: resourceID,
		Type:       lockType,
		LockedBy:   holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.timeout),
	}
	if current.Active(now) && current.LockedBy == holderID {
		// Idempotent re-entry: the original grant time survives, only the
		// expiry window moves
		lock.AcquiredAt = current.AcquiredAt
	}

	if err := m.store.Upsert(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// AcquireMany grants the lock on every resource id or none of them. Ids are
// deduplicated and processed in sorted order so two overlapping batches
// cannot deadlock on each other's row locks. The first conflict aborts the
// transaction, rolling back every lock granted earlier in the batch.
func (m *Manager) AcquireMany(ctx context.Context, resourceIDs []string, lockType LockType, holderID string) ([]Lock, error) {
	ids, err := normalizeBatch(resourceIDs, lockType, holderID)
	if err != nil {
		return nil, err
	}

	locks := make([]Lock, 0, len(ids))
	err = m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, id := range ids {
			lock, txErr := m.acquireLocked(txCtx, id, lockType, holderID)
			if txErr != nil {
				return txErr
			}
			locks = append(locks, *lock)
		}
		return nil
	})
	if err != nil {
		if conflict, ok := IsConflict(err); ok {
			m.metrics.LockConflict(string(lockType))
			m.logger.Info("batch lock conflict",
				"resource_id", conflict.ResourceID,
				"lock_type", lockType,
				"requested_by", holderID,
				"locked_by", conflict.LockedBy,
				"batch_size", len(ids),
			)
		}
		return nil, err
	}

	for range locks {
		m.metrics.LockAcquired(string(lockType))
	}
	return locks, nil
}

// Release deletes the lock row if holderID still holds it. Releasing a
// missing or expired lock is a no-op: the caller's session is over either
// way. Releasing another identity's active lock fails with a ConflictError;
// ForceRelease is the explicit override path.
func (m *Manager) Release(ctx context.Context, resourceID string, lockType LockType, holderID string) error {
	if err := validateKey(resourceID, lockType, holderID); err != nil {
		return err
	}

	err := m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		now, txErr := m.store.Now(txCtx)
		if txErr != nil {
			return txErr
		}

		current, txErr := m.store.GetForUpdate(txCtx, resourceID, lockType)
		if txErr != nil {
			return txErr
		}
		if current == nil {
			return nil
		}
		if !current.Active(now) {
			// Expired row: inert, remove it as a courtesy to the sweep
			return m.store.Delete(txCtx, resourceID, lockType)
		}
		if current.LockedBy != holderID {
			return &ConflictError{
				ResourceID: resourceID,
				Type:       lockType,
				LockedBy:   current.LockedBy,
				ExpiresAt:  current.ExpiresAt,
			}
		}
		return m.store.Delete(txCtx, resourceID, lockType)
	})
	if err != nil {
		return err
	}

	m.metrics.LockReleased(string(lockType))
	return nil
}

// ReleaseMany releases each id, continuing past individual failures.
// Release runs on cleanup and cancel paths, so it must never fail loudly;
// failures are logged and swallowed.
func (m *Manager) ReleaseMany(ctx context.Context, resourceIDs []string, lockType LockType, holderID string) {
	ids, err := normalizeBatch(resourceIDs, lockType, holderID)
	if err != nil {
		m.logger.Warn("batch release skipped", "error", err)
		return
	}

	for _, id := range ids {
		if err := m.Release(ctx, id, lockType, holderID); err != nil {
			m.logger.Warn("failed to release lock",
				"resource_id", id,
				"lock_type", lockType,
				"holder", holderID,
				"error", err,
			)
		}
	}
}

// ForceRelease deletes the lock row regardless of the holder. Administrative
// override for stranded sessions.
func (m *Manager) ForceRelease(ctx context.Context, resourceID string, lockType LockType) error {
	if resourceID == "" {
		return ErrResourceRequired
	}
	if _, err := ParseLockType(string(lockType)); err != nil {
		return err
	}

	if err := m.store.Delete(ctx, resourceID, lockType); err != nil {
		return err
	}
	m.metrics.LockReleased(string(lockType))
	m.logger.Warn("lock force-released", "resource_id", resourceID, "lock_type", lockType)
	return nil
}

// ReleaseForResource removes every lock row for a resource, across all lock
// types. Called by controllers when the resource itself is deleted.
func (m *Manager) ReleaseForResource(ctx context.Context, resourceID string) error {
	if resourceID == "" {
		return ErrResourceRequired
	}
	removed, err := m.store.DeleteForResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if removed > 0 {
		m.logger.Debug("released locks for deleted resource",
			"resource_id", resourceID, "count", removed)
	}
	return nil
}

// Inspect returns the current lock state without side effects. A physically
// present but expired row reads as unlocked.
func (m *Manager) Inspect(ctx context.Context, resourceID string, lockType LockType) (*State, error) {
	if resourceID == "" {
		return nil, ErrResourceRequired
	}
	if _, err := ParseLockType(string(lockType)); err != nil {
		return nil, err
	}

	now, err := m.store.Now(ctx)
	if err != nil {
		return nil, err
	}
	current, err := m.store.Get(ctx, resourceID, lockType)
	if err != nil {
		return nil, err
	}

	if !current.Active(now) {
		return &State{IsLocked: false}, nil
	}
	expiresAt := current.ExpiresAt
	return &State{
		IsLocked:  true,
		LockedBy:  current.LockedBy,
		ExpiresAt: &expiresAt,
	}, nil
}

// CleanupExpired deletes every lock row whose expiry has passed. Pure
// storage hygiene: acquire checks expiry independently, so correctness
// never depends on the sweep having run.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := m.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.metrics.LocksSwept(removed)
		m.logger.Info("expired locks swept", "count", removed)
	}
	return removed, nil
}

func validateKey(resourceID string, lockType LockType, holderID string) error {
	if strings.TrimSpace(resourceID) == "" {
		return ErrResourceRequired
	}
	if _, err := ParseLockType(string(lockType)); err != nil {
		return err
	}
	if strings.TrimSpace(holderID) == "" {
		return ErrHolderRequired
	}
	return nil
}

// normalizeBatch validates the batch inputs and returns the ids
// deduplicated and sorted
func normalizeBatch(resourceIDs []string, lockType LockType, holderID string) ([]string, error) {
	if len(resourceIDs) == 0 {
		return nil, ErrNoResources
	}
	seen := make(map[string]struct{}, len(resourceIDs))
	ids := make([]string, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		if err := validateKey(id, lockType, holderID); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
