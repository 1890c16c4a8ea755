package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantStore struct {
	pool *pgxpool.Pool
}

func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

func (s *TenantStore) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, owner_id, subscription,
		       plan_id, plan_name, max_repos, max_authors, max_emails_per_month,
		       repos_count, authors_count, emails_sent_this_month, usage_period_start,
		       created_at, updated_at
		FROM tenants
		WHERE id = $1`, id)
	return scanTenant(row)
}

// IncrementUsage is a single atomic UPDATE ... RETURNING — no read-modify-write
// race between two runs of the same tenant incrementing the same counter.
func (s *TenantStore) IncrementUsage(ctx context.Context, tenantID string, kind domain.QuotaKind, delta int) (int, error) {
	column, err := usageColumn(kind)
	if err != nil {
		return 0, err
	}

	var result int
	query := fmt.Sprintf(
		`UPDATE tenants SET %s = %s + $2, updated_at = NOW() WHERE id = $1 RETURNING %s`,
		column, column, column)
	if err := s.pool.QueryRow(ctx, query, tenantID, delta).Scan(&result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrTenantNotFound
		}
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return result, nil
}

func (s *TenantStore) RolloverUsageIfDue(ctx context.Context, tenantID string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tenants
		SET emails_sent_this_month = 0,
		    usage_period_start = $2,
		    updated_at = NOW()
		WHERE id = $1 AND usage_period_start <= $3`,
		tenantID, startOfMonth(now), now.AddDate(0, -1, 0))
	if err != nil {
		return fmt.Errorf("rollover usage: %w", err)
	}
	return nil
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func usageColumn(kind domain.QuotaKind) (string, error) {
	switch kind {
	case domain.QuotaRepo:
		return "repos_count", nil
	case domain.QuotaAuthor:
		return "authors_count", nil
	case domain.QuotaEmail:
		return "emails_sent_this_month", nil
	default:
		return "", fmt.Errorf("unknown quota kind %q", kind)
	}
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(
		&t.ID, &t.DisplayName, &t.OwnerID, &t.Subscription,
		&t.Plan.ID, &t.Plan.Name, &t.Plan.MaxRepos, &t.Plan.MaxAuthors, &t.Plan.MaxEmailsPerMonth,
		&t.Usage.ReposCount, &t.Usage.AuthorsCount, &t.Usage.EmailsSentThisMonth, &t.Usage.UsagePeriodStart,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}
