package sqlite

import (
	"context"
	"fmt"

	"github.com/forgectl/fg/internal/types"
)

// PutWorktreeIssue records the issue a `start` invocation bound to a
// git directory. Never mirrored to the remote.
func (s *SQLiteStorage) PutWorktreeIssue(ctx context.Context, w *types.WorktreeIssue) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO worktree_issues (git_dir, binding_id, issue_key, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(git_dir) DO UPDATE SET
				binding_id = excluded.binding_id,
				issue_key = excluded.issue_key,
				created_at = excluded.created_at
		`, w.GitDir, w.BindingID, w.IssueKey, w.CreatedAt)
		return err
	})
}

func (s *SQLiteStorage) GetWorktreeIssue(ctx context.Context, gitDir string) (*types.WorktreeIssue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT git_dir, binding_id, issue_key, created_at FROM worktree_issues WHERE git_dir = ?
	`, gitDir)

	w := &types.WorktreeIssue{}
	if err := row.Scan(&w.GitDir, &w.BindingID, &w.IssueKey, &w.CreatedAt); err != nil {
		return nil, errNoRows(err, fmt.Sprintf("no current issue for %s", gitDir))
	}
	return w, nil
}

// DeleteWorktreeIssue removes the link, as `cleanup` does.
func (s *SQLiteStorage) DeleteWorktreeIssue(ctx context.Context, gitDir string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM worktree_issues WHERE git_dir = ?`, gitDir)
		return err
	})
}
