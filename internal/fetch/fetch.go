// Package fetch retrieves pull request activity for one author from a
// code host, optionally scoped to a single repository.
package fetch

import "time"

// PullRequest is the activity unit a run summarises: one PR touched by the
// monitored author inside the fetch window.
type PullRequest struct {
	Number      int
	URL         string
	Title       string
	State       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Description string
	Labels      []string
	Files       []FileChange
}

// FileChange is a capped view of one file touched by a PullRequest — at
// most maxFilesPerPR files, each patch truncated to maxPatchBytes.
type FileChange struct {
	Filename string
	Patch    string
}
