package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MonitoringStore struct {
	pool *pgxpool.Pool
}

func NewMonitoringStore(pool *pgxpool.Pool) *MonitoringStore {
	return &MonitoringStore{pool: pool}
}

func (s *MonitoringStore) Create(ctx context.Context, e *domain.MonitoringEntry) (*domain.MonitoringEntry, error) {
	scheduleJSON, err := json.Marshal(e.Schedule)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO monitoring_entries (
			tenant_id, author_id, repository_id, mode, status, schedule,
			window_policy, explicit_from, explicit_to, recipients, note,
			next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, tenant_id, author_id, repository_id, mode, status, schedule,
		          window_policy, explicit_from, explicit_to, recipients, note,
		          last_run_at, next_run_at, created_at, updated_at`,
		e.TenantID, e.AuthorID, e.RepositoryID, e.Mode, e.Status, scheduleJSON,
		e.WindowPolicy, e.ExplicitFrom, e.ExplicitTo, e.Recipients, e.Note,
		e.Schedule.NextRunAt,
	)

	created, err := scanMonitoringEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateEntry
		}
		return nil, err
	}
	return created, nil
}

func (s *MonitoringStore) GetByID(ctx context.Context, id string) (*domain.MonitoringEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, author_id, repository_id, mode, status, schedule,
		       window_policy, explicit_from, explicit_to, recipients, note,
		       last_run_at, next_run_at, created_at, updated_at
		FROM monitoring_entries
		WHERE id = $1`, id)
	return scanMonitoringEntry(row)
}

// ClaimDue selects due, active entries with FOR UPDATE SKIP LOCKED. The
// query runs in its own implicit transaction, so the row locks are
// released when it returns; they do not stop another worker process from
// selecting the same entries afterwards. It does not itself advance
// next_run_at — the caller calls Advance once the run has closed, so a
// crash before that leaves the entry claimable on the next tick rather
// than silently skipped forever.
func (s *MonitoringStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.MonitoringEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, author_id, repository_id, mode, status, schedule,
		       window_policy, explicit_from, explicit_to, recipients, note,
		       last_run_at, next_run_at, created_at, updated_at
		FROM monitoring_entries
		WHERE status = $1 AND next_run_at <= $2
		ORDER BY next_run_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`, domain.EntryActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.MonitoringEntry
	for rows.Next() {
		e, err := scanMonitoringEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *MonitoringStore) Advance(ctx context.Context, id string, last time.Time, next *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE monitoring_entries
		SET last_run_at = $2, next_run_at = $3, updated_at = NOW()
		WHERE id = $1`, id, last, next)
	if err != nil {
		return fmt.Errorf("advance entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func scanMonitoringEntry(row rowScanner) (*domain.MonitoringEntry, error) {
	var e domain.MonitoringEntry
	var scheduleJSON []byte
	err := row.Scan(
		&e.ID, &e.TenantID, &e.AuthorID, &e.RepositoryID, &e.Mode, &e.Status, &scheduleJSON,
		&e.WindowPolicy, &e.ExplicitFrom, &e.ExplicitTo, &e.Recipients, &e.Note,
		&e.LastRunAt, &e.NextRunAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, fmt.Errorf("scan monitoring entry: %w", err)
	}
	if err := json.Unmarshal(scheduleJSON, &e.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &e, nil
}
