package scheduler

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargodesk_scheduler_run_total",
			Help: "Total number of scheduler task run attempts",
		},
		[]string{"task", "status"},
	)

	schedulerLockRenewTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargodesk_scheduler_lock_renew_total",
			Help: "Total number of scheduler lock renew operations",
		},
		[]string{"task", "status"},
	)
)

func recordSchedulerRun(taskName, status string) {
	schedulerRunTotal.WithLabelValues(
		normalizeSchedulerLabel(taskName),
		normalizeSchedulerLabel(status),
	).Inc()
}

func recordSchedulerLockRenew(taskName, status string) {
	schedulerLockRenewTotal.WithLabelValues(
		normalizeSchedulerLabel(taskName),
		normalizeSchedulerLabel(status),
	).Inc()
}

func normalizeSchedulerLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
