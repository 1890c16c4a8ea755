// Package quota gates tenant actions against their plan limits with
// optimistic, atomically-counted admission: check the cached usage
// snapshot, attempt the increment, and release it back out if the step
// the increment was guarding ultimately doesn't happen.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/digestloop/core/internal/store"
)

type Gate struct {
	tenants store.TenantStore
	logger  *slog.Logger
}

func NewGate(tenants store.TenantStore, logger *slog.Logger) *Gate {
	return &Gate{tenants: tenants, logger: logger.With("component", "quota")}
}

// CanConsume reports whether tenant has headroom for one more unit of
// kind, based on the tenant record's own usage snapshot. This is advisory
// only — Consume is the atomic operation that actually enforces the limit.
func CanConsume(t *domain.Tenant, kind domain.QuotaKind) bool {
	limit := t.Limit(kind)
	if limit <= 0 {
		return true // unlimited plan tier
	}
	return t.Consumed(kind) < limit
}

// Consume rolls over the billing period if due, then atomically increments
// the usage counter and re-checks the limit against the authoritative
// post-increment value. If the increment pushed usage over the limit, it
// is immediately released and ErrQuotaReached is returned — this is the
// only admission check that can't race two concurrent runs for the same
// tenant.
func (g *Gate) Consume(ctx context.Context, tenant *domain.Tenant, kind domain.QuotaKind, now time.Time) error {
	if err := g.tenants.RolloverUsageIfDue(ctx, tenant.ID, now); err != nil {
		return fmt.Errorf("rollover usage: %w", err)
	}

	limit := tenant.Limit(kind)
	if limit <= 0 {
		return nil
	}

	used, err := g.tenants.IncrementUsage(ctx, tenant.ID, kind, 1)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if used > limit {
		g.Release(ctx, tenant.ID, kind)
		return domain.ErrQuotaReached
	}
	return nil
}

// Release gives back one unit of kind, e.g. when a run that consumed an
// email-send slot ultimately failed to summarise or send. A leaked unit
// self-heals on the next billing rollover, so a failure here is logged
// and swallowed rather than propagated into the run's outcome.
func (g *Gate) Release(ctx context.Context, tenantID string, kind domain.QuotaKind) {
	if _, err := g.tenants.IncrementUsage(ctx, tenantID, kind, -1); err != nil {
		g.logger.Warn("release quota unit failed", "tenant_id", tenantID, "kind", kind, "error", err)
	}
}
