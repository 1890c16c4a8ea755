package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/digestloop/core/internal/domain"
	"github.com/google/go-github/v57/github"
)

const (
	maxFilesPerPR = 10
	maxPatchBytes = 500
	maxPRsPerRun  = 100
	callTimeout   = 15 * time.Second
)

// GitHubClient implements Client against the GitHub REST/Search API.
type GitHubClient struct {
	gh *github.Client
	// repoScoped is true once a repository-specific credential has been
	// applied via WithCredential, enabling the direct PullRequests.List
	// path. Without it we cannot assume read access to the repo and fall
	// back to the host-wide search API.
	repoScoped bool
}

func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{gh: github.NewClient(nil).WithAuthToken(token)}
}

// WithCredential swaps in a repository-specific token, used once a
// repository's own decrypted credential is available. An empty token
// leaves the process-wide client untouched and repo-unscoped.
func (c *GitHubClient) WithCredential(token string) *GitHubClient {
	if token == "" {
		return c
	}
	return &GitHubClient{gh: github.NewClient(nil).WithAuthToken(token), repoScoped: true}
}

// ListActivity lists one author's pull request activity. The primary path
// — PullRequests.List on a known (owner, name) with a repository credential
// — requires repo read access, which is only available once WithCredential
// has supplied one. Without it, ListActivity falls back to a host-wide
// search query; that path cannot see private repositories.
func (c *GitHubClient) ListActivity(ctx context.Context, repo *domain.Repository, authorUsername string, since, until time.Time) ([]PullRequest, error) {
	if c.repoScoped && repo != nil && repo.Owner != "" && repo.Name != "" {
		return c.listRepoPullRequests(ctx, repo, authorUsername, since, until)
	}
	return c.searchPullRequests(ctx, repo, authorUsername, since, until)
}

// listRepoPullRequests is the primary fetch procedure: list PRs on the
// repository most-recently-updated first, then retain only those authored
// by authorUsername (case-insensitive) with updatedAt inside [since, until].
func (c *GitHubClient) listRepoPullRequests(ctx context.Context, repo *domain.Repository, authorUsername string, since, until time.Time) ([]PullRequest, error) {
	var all []*github.PullRequest
	err := withRetry(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		ghPRs, resp, err := c.gh.PullRequests.List(reqCtx, repo.Owner, repo.Name, &github.PullRequestListOptions{
			State:       "all",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: github.ListOptions{PerPage: maxPRsPerRun},
		})
		if err != nil {
			return classifyError(resp, err)
		}
		all = ghPRs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}

	prs := make([]PullRequest, 0, len(all))
	for _, ghPR := range all {
		if !strings.EqualFold(ghPR.GetUser().GetLogin(), authorUsername) {
			continue
		}
		updatedAt := ghPR.GetUpdatedAt().Time
		if updatedAt.Before(since) || updatedAt.After(until) {
			continue
		}
		pr := PullRequest{
			Number:      ghPR.GetNumber(),
			URL:         ghPR.GetHTMLURL(),
			Title:       ghPR.GetTitle(),
			State:       ghPR.GetState(),
			CreatedAt:   ghPR.GetCreatedAt().Time,
			UpdatedAt:   updatedAt,
			Description: ghPR.GetBody(),
			Labels:      labelNames(ghPR.Labels),
		}
		files, err := c.listFiles(ctx, repo.Owner, repo.Name, pr.Number)
		if err != nil {
			return nil, fmt.Errorf("list files for pr %d: %w", pr.Number, err)
		}
		pr.Files = files
		prs = append(prs, pr)
		if len(prs) >= maxPRsPerRun {
			break
		}
	}
	return prs, nil
}

// searchPullRequests is the documented fallback for repositories with no
// credential of their own: a host-wide author search, which cannot see
// private repositories.
func (c *GitHubClient) searchPullRequests(ctx context.Context, repo *domain.Repository, authorUsername string, since, until time.Time) ([]PullRequest, error) {
	query := searchQuery(repo, authorUsername, since, until)

	var result *github.IssuesSearchResult
	err := withRetry(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		res, resp, err := c.gh.Search.Issues(reqCtx, query, &github.SearchOptions{
			Sort:        "updated",
			Order:       "desc",
			ListOptions: github.ListOptions{PerPage: maxPRsPerRun},
		})
		if err != nil {
			return classifyError(resp, err)
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search pull requests: %w", err)
	}

	prs := make([]PullRequest, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if !issue.IsPullRequest() {
			continue
		}
		pr := PullRequest{
			Number:      issue.GetNumber(),
			URL:         issue.GetHTMLURL(),
			Title:       issue.GetTitle(),
			State:       issue.GetState(),
			CreatedAt:   issue.GetCreatedAt().Time,
			UpdatedAt:   issue.GetUpdatedAt().Time,
			Description: issue.GetBody(),
			Labels:      labelNames(issue.Labels),
		}
		if owner, name, ok := repoFromIssueURL(issue.GetRepositoryURL()); ok {
			files, err := c.listFiles(ctx, owner, name, pr.Number)
			if err != nil {
				return nil, fmt.Errorf("list files for pr %d: %w", pr.Number, err)
			}
			pr.Files = files
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

// labelNames extracts label names in their original order.
func labelNames(labels []*github.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.GetName()
	}
	return names
}

func (c *GitHubClient) listFiles(ctx context.Context, owner, name string, number int) ([]FileChange, error) {
	var files []FileChange
	err := withRetry(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		ghFiles, resp, err := c.gh.PullRequests.ListFiles(reqCtx, owner, name, number, &github.ListOptions{PerPage: maxFilesPerPR})
		if err != nil {
			return classifyError(resp, err)
		}

		files = make([]FileChange, 0, min(len(ghFiles), maxFilesPerPR))
		for i, f := range ghFiles {
			if i >= maxFilesPerPR {
				break
			}
			patch := f.GetPatch()
			if len(patch) > maxPatchBytes {
				patch = patch[:maxPatchBytes]
			}
			files = append(files, FileChange{Filename: f.GetFilename(), Patch: patch})
		}
		return nil
	})
	return files, err
}

// searchQuery builds a GitHub search query scoped to repo when it names a
// real repository, or scanning the whole host by author otherwise.
func searchQuery(repo *domain.Repository, username string, since, until time.Time) string {
	var b strings.Builder
	b.WriteString("is:pr author:")
	b.WriteString(username)
	if repo != nil && repo.Owner != "" && repo.Name != "" {
		b.WriteString(" repo:")
		b.WriteString(repo.FullName())
	}
	fmt.Fprintf(&b, " updated:%s..%s", since.UTC().Format("2006-01-02"), until.UTC().Format("2006-01-02"))
	return b.String()
}

func repoFromIssueURL(url string) (owner, name string, ok bool) {
	const prefix = "https://api.github.com/repos/"
	if !strings.HasPrefix(url, prefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(url, prefix), "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// classifyError maps a GitHub API failure onto the retry/fatal split: auth
// and not-found failures are permanent for this run, rate limits and
// server errors are retried by the caller.
func classifyError(resp *github.Response, err error) error {
	if resp == nil {
		return err // network-level failure — retryable
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return &fatalError{fmt.Errorf("%w: %s", domain.ErrVCSAuth, err)}
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrVCSRate, err)
	default:
		if resp.StatusCode >= 500 {
			return err // retryable
		}
		return &fatalError{err}
	}
}
