package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/digestloop/core/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthorStore struct {
	pool *pgxpool.Pool
}

func NewAuthorStore(pool *pgxpool.Pool) *AuthorStore {
	return &AuthorStore{pool: pool}
}

func (s *AuthorStore) GetByID(ctx context.Context, id string) (*domain.Author, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, host_user_id, username, created_at FROM authors WHERE id = $1`, id)
	return scanAuthor(row)
}

// FindOrCreate is keyed on host_user_id, which is stable across username
// changes on the code host — two onboarding calls for the same host user
// must resolve to the same author row.
func (s *AuthorStore) FindOrCreate(ctx context.Context, hostUserID, username string) (*domain.Author, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO authors (host_user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (host_user_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, host_user_id, username, created_at`,
		hostUserID, username)
	return scanAuthor(row)
}

func scanAuthor(row rowScanner) (*domain.Author, error) {
	var a domain.Author
	err := row.Scan(&a.ID, &a.HostUserID, &a.Username, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuthorNotFound
		}
		return nil, fmt.Errorf("scan author: %w", err)
	}
	return &a, nil
}
