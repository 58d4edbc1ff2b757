package scheduler

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultRunTimeout bounds one task execution
	DefaultRunTimeout = time.Minute
)

// TaskFunc is the unit of work a task executes on each run
type TaskFunc func(ctx context.Context) error

// Task describes one periodic entry. Each run is guarded by a per-run
// lease, so across all server instances at most one executes it.
type Task struct {
	// Name identifies the task in lease keys, logs, and metrics
	Name string

	// Interval is the time between runs
	Interval time.Duration

	// Run is the work executed under the lease
	Run TaskFunc

	// LockTTL bounds the lease; zero uses the runtime default
	LockTTL time.Duration

	// RunTimeout bounds one execution; zero uses DefaultRunTimeout
	RunTimeout time.Duration
}

// Validate verifies required fields
func (t *Task) Validate() error {
	if t == nil {
		return schedulerError(ErrValidation, "task is nil")
	}
	if strings.TrimSpace(t.Name) == "" {
		return schedulerError(ErrValidation, "task name is required")
	}
	if t.Interval <= 0 {
		return schedulerError(ErrValidation, "task interval must be > 0")
	}
	if t.Run == nil {
		return schedulerError(ErrValidation, "task run function is required")
	}
	return nil
}

func (t *Task) runTimeout() time.Duration {
	if t.RunTimeout > 0 {
		return t.RunTimeout
	}
	return DefaultRunTimeout
}
