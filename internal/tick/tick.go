// Package tick polls for monitoring entries whose schedule has come due
// and runs them, one ticker-driven sweep at a time.
package tick

import (
	"context"
	"log/slog"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/executor"
	"github.com/digestloop/core/internal/metrics"
	"github.com/digestloop/core/internal/store"
)

// claimLimit bounds how many due entries one sweep processes, so a single
// tick can't run unbounded while the next tick's ticker fires underneath it.
const claimLimit = 100

type Loop struct {
	entries  store.MonitoringStore
	exec     *executor.Executor
	logger   *slog.Logger
	interval time.Duration
}

func NewLoop(entries store.MonitoringStore, exec *executor.Executor, logger *slog.Logger, interval time.Duration) *Loop {
	return &Loop{
		entries:  entries,
		exec:     exec,
		logger:   logger.With("component", "tick"),
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping for due entries every
// interval.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("tick loop started", "interval", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("tick loop shut down")
			return
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *Loop) sweep(ctx context.Context) {
	cycleStart := time.Now()
	defer func() {
		metrics.TickCycleDuration.Observe(time.Since(cycleStart).Seconds())
	}()

	now := time.Now()
	due, err := l.entries.ClaimDue(ctx, now, claimLimit)
	if err != nil {
		l.logger.Error("claim due entries failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	l.logger.Info("tick claimed entries", "count", len(due))
	metrics.TickEntriesClaimedTotal.Add(float64(len(due)))

	for _, entry := range due {
		l.fire(ctx, entry)
	}
}

// fire runs the entry through to completion. The executor itself advances
// the entry's schedule once the run closes, so a claimed entry never
// advances twice.
func (l *Loop) fire(ctx context.Context, entry *domain.MonitoringEntry) {
	if err := l.exec.RunEntry(ctx, entry, domain.TriggerScheduled); err != nil {
		l.logger.Error("run entry failed", "entry_id", entry.ID, "error", err)
	}
}
