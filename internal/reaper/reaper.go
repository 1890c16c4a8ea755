// Package reaper sweeps for runs abandoned mid-flight — a process that
// opened a run and crashed before closing it — and fails them so the
// owning entry's schedule isn't stuck waiting on a run that will never
// complete.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/metrics"
	"github.com/digestloop/core/internal/schedule"
	"github.com/digestloop/core/internal/store"
)

const claimLimit = 100

type Reaper struct {
	runs    store.RunStore
	entries store.MonitoringStore
	logger  *slog.Logger

	interval    time.Duration
	graceWindow time.Duration
}

func New(runs store.RunStore, entries store.MonitoringStore, interval, graceWindow time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		runs:        runs,
		entries:     entries,
		logger:      logger.With("component", "reaper"),
		interval:    interval,
		graceWindow: graceWindow,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "grace_window", r.graceWindow)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cycleStart := time.Now()
	defer func() {
		metrics.ReaperCycleDuration.Observe(time.Since(cycleStart).Seconds())
	}()

	cutoff := time.Now().Add(-r.graceWindow)

	stale, err := r.runs.ClaimStale(ctx, cutoff, claimLimit)
	if err != nil {
		r.logger.Error("claim stale runs failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	r.logger.Info("reaper claimed stale runs", "count", len(stale))

	for _, run := range stale {
		r.reap(ctx, run)
	}
}

func (r *Reaper) reap(ctx context.Context, run *domain.Run) {
	completed := time.Now()
	run.CompletedAt = &completed
	run.Delivery.Status = domain.DeliveryFailed
	run.Delivery.FailureReason = fmt.Sprintf("run abandoned: exceeded grace window of %s", r.graceWindow)

	if err := r.runs.Complete(ctx, run); err != nil {
		r.logger.Error("fail stale run", "run_id", run.ID, "error", err)
		return
	}
	metrics.ReaperRescuedTotal.WithLabelValues("failed").Inc()

	entry, err := r.entries.GetByID(ctx, run.EntryID)
	if err != nil {
		r.logger.Error("load entry for stale run", "run_id", run.ID, "entry_id", run.EntryID, "error", err)
		return
	}

	next, ok := schedule.NextFiring(entry.Schedule, completed)
	var nextPtr *time.Time
	if ok {
		nextPtr = &next
	}
	if err := r.entries.Advance(ctx, entry.ID, completed, nextPtr); err != nil {
		r.logger.Error("reschedule entry after stale run", "entry_id", entry.ID, "error", err)
	}
}
