// Package store declares the persistence contracts the executor, tick
// loop, reaper and HTTP hooks depend on. UseCases depend on these
// interfaces, not the postgres package directly, so the backing store can
// be swapped (or faked in tests) without touching calling code.
package store

import (
	"context"
	"time"

	"github.com/digestloop/core/internal/domain"
)

type TenantStore interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)

	// IncrementUsage atomically adds delta to the named usage counter and
	// returns the resulting value. delta may be negative (release).
	IncrementUsage(ctx context.Context, tenantID string, kind domain.QuotaKind, delta int) (int, error)

	// RolloverUsageIfDue resets EmailsSentThisMonth to zero and advances
	// UsagePeriodStart when the current period has elapsed. No-op otherwise.
	RolloverUsageIfDue(ctx context.Context, tenantID string, now time.Time) error
}

type RepositoryStore interface {
	Create(ctx context.Context, r *domain.Repository) (*domain.Repository, error)
	GetByID(ctx context.Context, id string) (*domain.Repository, error)
	SetStatus(ctx context.Context, id string, status domain.RepositoryStatus) error
}

type AuthorStore interface {
	GetByID(ctx context.Context, id string) (*domain.Author, error)
	FindOrCreate(ctx context.Context, hostUserID, username string) (*domain.Author, error)
}

type MonitoringStore interface {
	Create(ctx context.Context, e *domain.MonitoringEntry) (*domain.MonitoringEntry, error)
	GetByID(ctx context.Context, id string) (*domain.MonitoringEntry, error)

	// ClaimDue selects up to limit active entries whose next_run_at has
	// elapsed, oldest first. It does not advance next_run_at — callers
	// advance explicitly via Advance once the run for that entry has closed,
	// so a crash before that leaves the entry claimable on a later call.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.MonitoringEntry, error)

	// Advance sets next_run_at/last_run_at after a run for the entry has
	// closed. next being nil means the schedule has no further
	// occurrences (a one_time schedule) and the entry is left dormant.
	Advance(ctx context.Context, id string, last time.Time, next *time.Time) error
}

type RunStore interface {
	Open(ctx context.Context, r *domain.Run) (*domain.Run, error)
	GetByID(ctx context.Context, id string) (*domain.Run, error)

	// Complete writes the terminal fields of a run exactly once. Calling it
	// twice for the same id is a no-op returning domain.ErrRunAlreadyClosed,
	// so a retried completion request from an upstream caller is safe.
	Complete(ctx context.Context, run *domain.Run) error

	// ClaimStale returns runs stuck in RunStarted past cutoff, for the
	// reaper to fail and reschedule. Bounded by limit per sweep.
	ClaimStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error)
}
