package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/digestloop/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepositoryStore struct {
	pool *pgxpool.Pool
}

func NewRepositoryStore(pool *pgxpool.Pool) *RepositoryStore {
	return &RepositoryStore{pool: pool}
}

func (s *RepositoryStore) Create(ctx context.Context, r *domain.Repository) (*domain.Repository, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO repositories (tenant_id, owner, name, status, credential_ciphertext)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, owner, name, status, credential_ciphertext, created_at, updated_at`,
		r.TenantID, r.Owner, r.Name, r.Status, r.CredentialCiphertext,
	)

	created, err := scanRepository(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateRepository
		}
		return nil, err
	}
	return created, nil
}

func (s *RepositoryStore) GetByID(ctx context.Context, id string) (*domain.Repository, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, owner, name, status, credential_ciphertext, created_at, updated_at
		FROM repositories
		WHERE id = $1`, id)
	return scanRepository(row)
}

func (s *RepositoryStore) SetStatus(ctx context.Context, id string, status domain.RepositoryStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set repository status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRepositoryNotFound
	}
	return nil
}

func scanRepository(row rowScanner) (*domain.Repository, error) {
	var r domain.Repository
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Owner, &r.Name, &r.Status, &r.CredentialCiphertext,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRepositoryNotFound
		}
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	return &r, nil
}
