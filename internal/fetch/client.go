package fetch

import (
	"context"
	"time"

	"github.com/digestloop/core/internal/domain"
)

// Client fetches one author's pull request activity. A nil or
// zero-valued repo triggers a host-wide search rather than a repo-scoped
// one — the fallback path used when a repository has no working
// credential of its own.
type Client interface {
	ListActivity(ctx context.Context, repo *domain.Repository, authorUsername string, since, until time.Time) ([]PullRequest, error)
}
