// Package summarize turns a window of pull request activity into a short
// prose digest via an LLM. Failure here is never fatal to a run — the
// executor records it and still advances the schedule.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/digestloop/core/internal/fetch"
)

// maxDescriptionChars bounds each PR description in the serialized prompt,
// independent of the file-patch truncation fetch already applies.
const maxDescriptionChars = 200

// Request is everything the model needs to produce a deterministic,
// reproducible prompt for one run.
type Request struct {
	RepositoryFullName string
	AuthorUsername     string
	Note               string
	PullRequests       []fetch.PullRequest
}

// Client produces a prose summary of a Request's activity.
type Client interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// BuildPrompt serialises a Request deterministically — same input always
// produces the same prompt text, so retries and tests are reproducible.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are summarising recent pull request activity for %s on %s.\n", req.AuthorUsername, req.RepositoryFullName)
	if req.Note != "" {
		fmt.Fprintf(&b, "Context note from the watcher: %s\n", req.Note)
	}
	fmt.Fprintf(&b, "\n%d pull request(s) in this window:\n", len(req.PullRequests))

	for _, pr := range req.PullRequests {
		fmt.Fprintf(&b, "\n#%d %s (%s)\n", pr.Number, pr.Title, pr.URL)
		fmt.Fprintf(&b, "  state: %s, created: %s\n", pr.State, pr.CreatedAt.UTC().Format("2006-01-02"))
		if desc := truncateDescription(pr.Description); desc != "" {
			fmt.Fprintf(&b, "  description: %s\n", desc)
		}
		if len(pr.Labels) > 0 {
			fmt.Fprintf(&b, "  labels: %s\n", strings.Join(pr.Labels, ", "))
		}
		for _, f := range pr.Files {
			fmt.Fprintf(&b, "  - %s\n", f.Filename)
			if f.Patch != "" {
				fmt.Fprintf(&b, "    %s\n", f.Patch)
			}
		}
	}

	b.WriteString("\nWrite a concise plain-language summary (3-6 sentences) of what this author worked on. Do not invent details not present above.")
	return b.String()
}

// truncateDescription caps a PR body at maxDescriptionChars, marking the cut
// with an ellipsis so the model knows the text was shortened.
func truncateDescription(desc string) string {
	runes := []rune(strings.TrimSpace(desc))
	if len(runes) <= maxDescriptionChars {
		return string(runes)
	}
	return string(runes[:maxDescriptionChars]) + "..."
}
