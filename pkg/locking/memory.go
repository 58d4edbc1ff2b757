package locking

import (
	"context"
	"sync"
	"time"
)

type lockKey struct {
	resourceID string
	lockType   LockType
}

// MemoryStore is an in-process Store used as a test double for the
// manager's state machine. The clock is injectable so tests can move time
// forward deterministically. Not suitable for multi-instance deployments:
// the production store is PostgresStore.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[lockKey]Lock
	clock func() time.Time
}

// NewMemoryStore creates an empty in-memory lock store using the real clock
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[lockKey]Lock),
		clock: time.Now,
	}
}

// SetClock replaces the store's clock
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Now returns the store's current time
func (s *MemoryStore) Now(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock(), nil
}

// Get returns a copy of the lock row for the key, or nil if absent
func (s *MemoryStore) Get(ctx context.Context, resourceID string, lockType LockType) (*Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.locks[lockKey{resourceID, lockType}]; ok {
		copied := lock
		return &copied, nil
	}
	return nil, nil
}

// GetForUpdate behaves like Get; the store mutex stands in for the row lock
func (s *MemoryStore) GetForUpdate(ctx context.Context, resourceID string, lockType LockType) (*Lock, error) {
	return s.Get(ctx, resourceID, lockType)
}

// Upsert inserts or overwrites the lock row for the key
func (s *MemoryStore) Upsert(ctx context.Context, lock *Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[lockKey{lock.ResourceID, lock.Type}] = *lock
	return nil
}

// Delete removes the lock row for the key, if present
func (s *MemoryStore) Delete(ctx context.Context, resourceID string, lockType LockType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, lockKey{resourceID, lockType})
	return nil
}

// DeleteForResource removes every lock row for a resource
func (s *MemoryStore) DeleteForResource(ctx context.Context, resourceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key := range s.locks {
		if key.resourceID == resourceID {
			delete(s.locks, key)
			removed++
		}
	}
	return removed, nil
}

// DeleteExpired removes every row whose expiry has passed
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var removed int64
	for key, lock := range s.locks {
		if !now.Before(lock.ExpiresAt) {
			delete(s.locks, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of physically present rows, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func (s *MemoryStore) snapshot() map[lockKey]Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[lockKey]Lock, len(s.locks))
	for key, lock := range s.locks {
		copied[key] = lock
	}
	return copied
}

func (s *MemoryStore) restore(snapshot map[lockKey]Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = snapshot
}

// MemoryTxManager gives MemoryStore rollback semantics: a failing unit of
// work restores the pre-transaction state, matching what a database
// transaction does for PostgresStore. Transactions are not isolated from
// each other; this is a single-goroutine test double.
type MemoryTxManager struct {
	store *MemoryStore
}

// NewMemoryTxManager creates a transaction manager over a MemoryStore
func NewMemoryTxManager(store *MemoryStore) *MemoryTxManager {
	return &MemoryTxManager{store: store}
}

// WithTransaction runs fn, restoring the store on error
func (m *MemoryTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(snapshot)
		return err
	}
	return nil
}
