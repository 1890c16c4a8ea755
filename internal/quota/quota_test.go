package quota

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/digestloop/core/internal/domain"
)

type fakeTenantStore struct {
	usage map[domain.QuotaKind]int
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{usage: map[domain.QuotaKind]int{}}
}

func (f *fakeTenantStore) GetByID(context.Context, string) (*domain.Tenant, error) { return nil, nil }

func (f *fakeTenantStore) IncrementUsage(_ context.Context, _ string, kind domain.QuotaKind, delta int) (int, error) {
	f.usage[kind] += delta
	return f.usage[kind], nil
}

func (f *fakeTenantStore) RolloverUsageIfDue(context.Context, string, time.Time) error { return nil }

func TestGate_ConsumeBlocksAtLimit(t *testing.T) {
	fake := newFakeTenantStore()
	fake.usage[domain.QuotaEmail] = 10
	gate := NewGate(fake, slog.Default())

	tenant := &domain.Tenant{ID: "t1", Plan: domain.PlanLimits{MaxEmailsPerMonth: 10}}

	err := gate.Consume(context.Background(), tenant, domain.QuotaEmail, time.Now())
	if err != domain.ErrQuotaReached {
		t.Fatalf("expected ErrQuotaReached, got %v", err)
	}
	if fake.usage[domain.QuotaEmail] != 10 {
		t.Fatalf("expected usage to be released back to 10, got %d", fake.usage[domain.QuotaEmail])
	}
}

func TestGate_ConsumeAllowsUnderLimit(t *testing.T) {
	fake := newFakeTenantStore()
	fake.usage[domain.QuotaEmail] = 4
	gate := NewGate(fake, slog.Default())

	tenant := &domain.Tenant{ID: "t1", Plan: domain.PlanLimits{MaxEmailsPerMonth: 10}}

	if err := gate.Consume(context.Background(), tenant, domain.QuotaEmail, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.usage[domain.QuotaEmail] != 5 {
		t.Fatalf("expected usage 5, got %d", fake.usage[domain.QuotaEmail])
	}
}

func TestGate_UnlimitedPlanNeverBlocks(t *testing.T) {
	fake := newFakeTenantStore()
	gate := NewGate(fake, slog.Default())
	tenant := &domain.Tenant{ID: "t1", Plan: domain.PlanLimits{MaxEmailsPerMonth: 0}}

	for i := 0; i < 50; i++ {
		if err := gate.Consume(context.Background(), tenant, domain.QuotaEmail, time.Now()); err != nil {
			t.Fatalf("unexpected error on iteration %d: %v", i, err)
		}
	}
}

func TestCanConsume_AdvisoryCheck(t *testing.T) {
	tenant := &domain.Tenant{
		Plan:  domain.PlanLimits{MaxRepos: 3},
		Usage: domain.Usage{ReposCount: 3},
	}
	if CanConsume(tenant, domain.QuotaRepo) {
		t.Fatalf("expected CanConsume to report no headroom at the limit")
	}
	tenant.Usage.ReposCount = 2
	if !CanConsume(tenant, domain.QuotaRepo) {
		t.Fatalf("expected CanConsume to report headroom below the limit")
	}
}
