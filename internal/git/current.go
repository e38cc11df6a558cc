package git

import (
	"context"
	"fmt"

	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/types"
)

// CurrentIssue returns the issue `start` bound to gitDir, or a
// not-found-shaped error if `start` was never run (or `cleanup` has
// since cleared it).
func CurrentIssue(ctx context.Context, st store.Store, gitDir string) (*types.WorktreeIssue, error) {
	return st.GetWorktreeIssue(ctx, gitDir)
}

// Hook formats a commit-message trailer for the issue bound to a git
// directory, the line `git commit` template hooks append so a commit
// records which issue it closes.
type Hook struct {
	BindingID string
	IssueKey  string
}

// Trailer renders the "Issue: <key>" line appended to a commit
// message template.
func (h Hook) Trailer() string {
	return fmt.Sprintf("Issue: %s", h.IssueKey)
}

// HookFor builds a Hook from the current worktree issue, or returns
// ok=false if none is bound.
func HookFor(ctx context.Context, st store.Store, gitDir string) (Hook, bool) {
	w, err := st.GetWorktreeIssue(ctx, gitDir)
	if err != nil || w == nil {
		return Hook{}, false
	}
	return Hook{BindingID: w.BindingID, IssueKey: w.IssueKey}, true
}
