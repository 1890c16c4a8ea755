package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

func (s *RunStore) Open(ctx context.Context, r *domain.Run) (*domain.Run, error) {
	prsJSON, err := json.Marshal(r.PRs)
	if err != nil {
		return nil, fmt.Errorf("marshal prs: %w", err)
	}
	deliveryJSON, err := json.Marshal(r.Delivery)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO runs (
			entry_id, tenant_id, author_id, repository_id, trigger, status,
			scheduled_at, started_at, fetch_from, fetch_to,
			pr_count, prs, has_activity, summary, note, delivery
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, entry_id, tenant_id, author_id, repository_id, trigger, status,
		          scheduled_at, started_at, completed_at, fetch_from, fetch_to,
		          pr_count, prs, has_activity, summary, note, delivery`,
		r.EntryID, r.TenantID, r.AuthorID, r.RepositoryID, r.Trigger, domain.RunStarted,
		r.ScheduledAt, r.StartedAt, r.FetchFrom, r.FetchTo,
		r.PRCount, prsJSON, r.HasActivity, r.Summary, r.Note, deliveryJSON,
	)
	return scanRun(row)
}

func (s *RunStore) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, entry_id, tenant_id, author_id, repository_id, trigger, status,
		       scheduled_at, started_at, completed_at, fetch_from, fetch_to,
		       pr_count, prs, has_activity, summary, note, delivery
		FROM runs
		WHERE id = $1`, id)
	return scanRun(row)
}

// Complete writes the terminal state of a run. The WHERE clause only
// matches a run still in the started state, so a second completion
// attempt (e.g. a retried webhook) affects zero rows rather than
// clobbering the first outcome.
func (s *RunStore) Complete(ctx context.Context, r *domain.Run) error {
	prsJSON, err := json.Marshal(r.PRs)
	if err != nil {
		return fmt.Errorf("marshal prs: %w", err)
	}
	deliveryJSON, err := json.Marshal(r.Delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE runs
		SET status = $2, completed_at = $3, pr_count = $4, prs = $5,
		    has_activity = $6, summary = $7, delivery = $8
		WHERE id = $1 AND status = $9`,
		r.ID, domain.RunCompleted, r.CompletedAt, r.PRCount, prsJSON,
		r.HasActivity, r.Summary, deliveryJSON, domain.RunStarted,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetByID(ctx, r.ID); getErr != nil {
			return getErr
		}
		return domain.ErrRunAlreadyClosed
	}
	return nil
}

// ClaimStale selects started runs whose started_at predates cutoff, for the
// reaper to fail and reschedule. The FOR UPDATE SKIP LOCKED locks last only
// for this query; a live executor completing the same run concurrently is
// handled by Complete, which only updates a run still in the started state.
func (s *RunStore) ClaimStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, entry_id, tenant_id, author_id, repository_id, trigger, status,
		       scheduled_at, started_at, completed_at, fetch_from, fetch_to,
		       pr_count, prs, has_activity, summary, note, delivery
		FROM runs
		WHERE status = $1 AND started_at < $2
		ORDER BY started_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`, domain.RunStarted, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("claim stale runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var r domain.Run
	var prsJSON, deliveryJSON []byte
	err := row.Scan(
		&r.ID, &r.EntryID, &r.TenantID, &r.AuthorID, &r.RepositoryID, &r.Trigger, &r.Status,
		&r.ScheduledAt, &r.StartedAt, &r.CompletedAt, &r.FetchFrom, &r.FetchTo,
		&r.PRCount, &prsJSON, &r.HasActivity, &r.Summary, &r.Note, &deliveryJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal(prsJSON, &r.PRs); err != nil {
		return nil, fmt.Errorf("unmarshal prs: %w", err)
	}
	if err := json.Unmarshal(deliveryJSON, &r.Delivery); err != nil {
		return nil, fmt.Errorf("unmarshal delivery: %w", err)
	}
	return &r, nil
}
