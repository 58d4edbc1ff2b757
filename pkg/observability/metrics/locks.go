package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lockOperationsTotal counts record lock protocol operations.
	// Labels: operation (acquired, conflict, released), lock_type
	lockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargodesk_lock_operations_total",
			Help: "Total number of record lock operations by outcome",
		},
		[]string{"operation", "lock_type"},
	)

	// locksSweptTotal counts expired lock rows removed by the cleanup sweep
	locksSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cargodesk_locks_swept_total",
			Help: "Total number of expired lock rows removed by cleanup",
		},
	)
)

// LockRecorder publishes record lock protocol counters. It satisfies the
// metrics hook the lock manager accepts.
type LockRecorder struct{}

// NewLockRecorder creates a lock protocol metrics recorder
func NewLockRecorder() *LockRecorder {
	return &LockRecorder{}
}

// LockAcquired records a successful acquire or refresh
func (r *LockRecorder) LockAcquired(lockType string) {
	lockOperationsTotal.WithLabelValues("acquired", lockType).Inc()
}

// LockConflict records an acquire rejected by another holder
func (r *LockRecorder) LockConflict(lockType string) {
	lockOperationsTotal.WithLabelValues("conflict", lockType).Inc()
}

// LockReleased records a release
func (r *LockRecorder) LockReleased(lockType string) {
	lockOperationsTotal.WithLabelValues("released", lockType).Inc()
}

// LocksSwept records expired rows removed by one cleanup pass
func (r *LockRecorder) LocksSwept(count int64) {
	if count <= 0 {
		return
	}
	locksSweptTotal.Add(float64(count))
}
