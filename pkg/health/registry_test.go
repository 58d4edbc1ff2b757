package health

import (
	"context"
	"testing"
	"time"
)

type stubChecker struct {
	name   string
	result CheckResult
	delay  time.Duration
}

func (s *stubChecker) Check(ctx context.Context) CheckResult {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.result
}

func (s *stubChecker) Name() string {
	return s.name
}

func healthyChecker(name string) *stubChecker {
	return &stubChecker{name: name, result: CheckResult{Name: name, Status: StatusHealthy}}
}

func TestRegistry_RegisterAndList(t *testing.T) {
	registry := NewRegistry()

	if got := len(registry.List()); got != 0 {
		t.Fatalf("expected empty registry, got %d checkers", got)
	}

	registry.Register(healthyChecker("database"))
	registry.Register(healthyChecker("scheduler-lock"))

	if got := len(registry.List()); got != 2 {
		t.Fatalf("expected 2 checkers, got %d", got)
	}

	// Same name replaces, not duplicates.
	registry.Register(healthyChecker("database"))
	if got := len(registry.List()); got != 2 {
		t.Errorf("expected 2 checkers after replacement, got %d", got)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()
	registry.Register(healthyChecker("database"))

	registry.Unregister("database")
	if got := len(registry.List()); got != 0 {
		t.Errorf("expected 0 checkers after unregister, got %d", got)
	}

	registry.Unregister("absent")
}

func TestRegistry_Check_AllHealthy(t *testing.T) {
	registry := NewRegistry()
	registry.Register(healthyChecker("database"))
	registry.Register(healthyChecker("scheduler-lock"))

	result := registry.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", result.Status)
	}
	if len(result.Checks) != 2 {
		t.Errorf("expected 2 check results, got %d", len(result.Checks))
	}
	if !result.IsHealthy() {
		t.Error("IsHealthy() should be true")
	}
}

func TestRegistry_Check_UnhealthyWins(t *testing.T) {
	registry := NewRegistry()
	registry.Register(healthyChecker("database"))
	registry.Register(&stubChecker{
		name: "scheduler-lock",
		result: CheckResult{
			Name:   "scheduler-lock",
			Status: StatusUnhealthy,
			Error:  "connection refused",
		},
	})

	result := registry.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", result.Status)
	}
	if result.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
}

func TestRegistry_Check_DegradedDowngradesHealthy(t *testing.T) {
	registry := NewRegistry()
	registry.Register(healthyChecker("database"))
	registry.Register(&stubChecker{
		name:   "redis",
		result: CheckResult{Name: "redis", Status: StatusDegraded},
	})

	result := registry.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", result.Status)
	}
}

func TestRegistry_Check_UnhealthyBeatsDegraded(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubChecker{
		name:   "redis",
		result: CheckResult{Name: "redis", Status: StatusDegraded},
	})
	registry.Register(&stubChecker{
		name:   "database",
		result: CheckResult{Name: "database", Status: StatusUnhealthy},
	})

	result := registry.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", result.Status)
	}
}

func TestRegistry_Check_Empty(t *testing.T) {
	result := NewRegistry().Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("expected empty registry to report healthy, got %s", result.Status)
	}
	if len(result.Checks) != 0 {
		t.Errorf("expected 0 check results, got %d", len(result.Checks))
	}
}

func TestRegistry_Check_RunsConcurrently(t *testing.T) {
	registry := NewRegistry()
	delay := 100 * time.Millisecond
	for _, name := range []string{"a", "b", "c"} {
		registry.Register(&stubChecker{
			name:   name,
			delay:  delay,
			result: CheckResult{Name: name, Status: StatusHealthy},
		})
	}

	start := time.Now()
	registry.Check(context.Background())
	elapsed := time.Since(start)

	if elapsed > delay+50*time.Millisecond {
		t.Errorf("checks appear sequential: took %v", elapsed)
	}
}

func TestRegistry_CheckOne(t *testing.T) {
	registry := NewRegistry()
	registry.Register(healthyChecker("database"))

	result, err := registry.CheckOne(context.Background(), "database")
	if err != nil {
		t.Fatalf("CheckOne() error: %v", err)
	}
	if result.Name != "database" || result.Status != StatusHealthy {
		t.Errorf("unexpected result %+v", result)
	}

	if _, err := registry.CheckOne(context.Background(), "absent"); err == nil {
		t.Error("expected error for unknown checker")
	}
}

func TestRegistry_RegisterFunc(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("lock-backlog", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "lock-backlog", Status: StatusDegraded, Message: "sweep overdue"}
	})

	result, err := registry.CheckOne(context.Background(), "lock-backlog")
	if err != nil {
		t.Fatalf("CheckOne() error: %v", err)
	}
	if result.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", result.Status)
	}
}
