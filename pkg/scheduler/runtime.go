package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cargodesk/cargodesk/pkg/observability/logger"
)

const (
	// DefaultLockTTL bounds a run lease when the task does not set one
	DefaultLockTTL = 30 * time.Second
)

// Config controls scheduler runtime behavior
type Config struct {
	DefaultLockTTL time.Duration
}

func (c *Config) normalize() {
	if c.DefaultLockTTL <= 0 {
		c.DefaultLockTTL = DefaultLockTTL
	}
}

// Runtime executes registered tasks on their intervals. Every run acquires
// a lease keyed by task name and run slot; losing the lease means another
// instance is handling that run, which is success, not failure.
type Runtime struct {
	lock LockProvider
	log  logger.Logger

	config Config

	mu      sync.Mutex
	tasks   map[string]Task
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRuntime creates a distributed scheduler runtime
func NewRuntime(lockProvider LockProvider, log logger.Logger, cfg Config) (*Runtime, error) {
	if lockProvider == nil {
		return nil, schedulerError(ErrInvalidArgument, "lock provider is required")
	}
	if log == nil {
		return nil, schedulerError(ErrInvalidArgument, "logger is required")
	}

	cfg.normalize()
	return &Runtime{
		lock:   lockProvider,
		log:    log,
		config: cfg,
		tasks:  map[string]Task{},
	}, nil
}

// Register adds a new periodic task. Must be called before Start.
func (r *Runtime) Register(task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return schedulerError(ErrConflict, "cannot register tasks while running")
	}
	if _, exists := r.tasks[task.Name]; exists {
		return schedulerError(ErrConflict, fmt.Sprintf("task %q is already registered", task.Name))
	}
	r.tasks[task.Name] = task
	return nil
}

// Start runs all registered tasks until context cancellation
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return schedulerError(ErrNotInitialized, "scheduler runtime is not initialized")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return schedulerError(ErrConflict, "scheduler already running")
	}
	runningCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	tasks := make([]Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task)
	}
	r.mu.Unlock()

	if len(tasks) == 0 {
		cancel()
		r.mu.Lock()
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
		return schedulerError(ErrValidation, "no scheduler tasks registered")
	}

	for _, task := range tasks {
		r.wg.Add(1)
		go r.runTaskLoop(runningCtx, task)
	}

	<-runningCtx.Done()
	return r.Stop(context.Background())
}

// Stop requests scheduler shutdown and waits for active loops
func (r *Runtime) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	waitCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-waitCh:
		return nil
	}
}

// Trigger runs a registered task once, immediately, under its own lease
func (r *Runtime) Trigger(ctx context.Context, name string) error {
	if r == nil {
		return schedulerError(ErrNotInitialized, "scheduler runtime is not initialized")
	}

	r.mu.Lock()
	task, exists := r.tasks[name]
	r.mu.Unlock()
	if !exists {
		return schedulerError(ErrValidation, fmt.Sprintf("unknown task %q", name))
	}
	return r.runOnce(ctx, task, time.Now().UTC())
}

func (r *Runtime) runTaskLoop(ctx context.Context, task Task) {
	defer r.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case runAt := <-ticker.C:
			if err := r.runOnce(ctx, task, runAt); err != nil {
				r.log.Error("scheduler task run failed", "task", task.Name, "error", err)
			}
		}
	}
}

// runOnce executes one run slot under its lease. The lease key includes
// the slot so a slow instance cannot re-trigger a run another instance
// already completed.
func (r *Runtime) runOnce(ctx context.Context, task Task, runAt time.Time) error {
	lockTTL := task.LockTTL
	if lockTTL <= 0 {
		lockTTL = r.config.DefaultLockTTL
	}

	slot := runAt.UTC().Truncate(task.Interval)
	lockKey := fmt.Sprintf("scheduler:%s:%d", task.Name, slot.Unix())

	lease, acquired, err := r.lock.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lease failed: %w", err)
	}
	if !acquired {
		r.log.Debug("scheduler run handled by another instance", "task", task.Name, "slot", slot)
		return nil
	}

	recordSchedulerRun(task.Name, "started")

	runCtx, cancelRun := context.WithTimeout(ctx, task.runTimeout())
	stopRenew := r.keepLeaseAlive(runCtx, task.Name, lease, lockTTL)
	runErr := task.Run(runCtx)
	stopRenew()
	cancelRun()

	var releaseErr error
	if lease != nil {
		releaseErr = r.lock.Release(ctx, lease)
	}

	if runErr != nil {
		recordSchedulerRun(task.Name, "failed")
	} else {
		recordSchedulerRun(task.Name, "succeeded")
	}
	if runErr != nil || releaseErr != nil {
		return errors.Join(runErr, releaseErr)
	}
	return nil
}

// keepLeaseAlive renews the run lease at half its TTL so tasks that outlive
// one lease period keep exclusive ownership. Returns a stop function.
func (r *Runtime) keepLeaseAlive(ctx context.Context, taskName string, lease *LockLease, ttl time.Duration) func() {
	if lease == nil {
		return func() {}
	}

	interval := ttl / 2
	if interval <= 0 {
		interval = time.Second
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.lock.Renew(ctx, lease, ttl); err != nil {
					recordSchedulerLockRenew(taskName, "failed")
					r.log.Warn("scheduler lease renew failed", "task", taskName, "error", err)
					continue
				}
				recordSchedulerLockRenew(taskName, "succeeded")
			}
		}
	}()

	return stop
}
