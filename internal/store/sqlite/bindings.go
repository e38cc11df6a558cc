package sqlite

import (
	"context"
	"fmt"

	"github.com/forgectl/fg/internal/types"
)

// GetBinding looks up the binding for a git directory. Exactly one
// binding exists per git directory (SPEC_FULL.md §3 invariant).
func (s *SQLiteStorage) GetBinding(ctx context.Context, gitDir string) (*types.Binding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT git_dir, forge, repo, token_ref, linked_at FROM bindings WHERE git_dir = ?
	`, gitDir)

	b := &types.Binding{}
	var forge string
	if err := row.Scan(&b.GitDir, &forge, &b.Repo, &b.TokenRef, &b.LinkedAt); err != nil {
		return nil, errNoRows(err, fmt.Sprintf("no binding for %s", gitDir))
	}
	b.Forge = types.ForgeKind(forge)
	return b, nil
}

// PutBinding writes a binding atomically, replacing any existing
// binding for the same git directory. Callers are responsible for the
// confirmation step the spec requires before replacing an existing
// binding (§3 invariant); the store itself performs an unconditional
// upsert.
func (s *SQLiteStorage) PutBinding(ctx context.Context, b *types.Binding) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO bindings (git_dir, binding_id, forge, repo, token_ref, linked_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(git_dir) DO UPDATE SET
				binding_id = excluded.binding_id,
				forge = excluded.forge,
				repo = excluded.repo,
				token_ref = excluded.token_ref,
				linked_at = excluded.linked_at
		`, b.GitDir, b.ID(), string(b.Forge), b.Repo, b.TokenRef, b.LinkedAt)
		return err
	})
}

// DeleteBinding removes a binding and every cached row that refers to
// it (issues, pending ops, sync state, worktree-issue links), leaving
// no orphan rows per
// SPEC_FULL.md §4.3.
func (s *SQLiteStorage) DeleteBinding(ctx context.Context, gitDir string) error {
	return withRetry(ctx, func() error {
		b, err := s.GetBinding(ctx, gitDir)
		if err != nil {
			return err
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		bindingID := b.ID()
		for _, stmt := range []string{
			`DELETE FROM issues WHERE binding_id = ?`,
			`DELETE FROM pending_ops WHERE binding_id = ?`,
			`DELETE FROM sync_state WHERE binding_id = ?`,
			`DELETE FROM worktree_issues WHERE binding_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, bindingID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM bindings WHERE git_dir = ?`, gitDir); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ListBindings returns every bound repo, used by the sync engine to
// build its per-binding tick schedule.
func (s *SQLiteStorage) ListBindings(ctx context.Context) ([]*types.Binding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT git_dir, forge, repo, token_ref, linked_at FROM bindings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*types.Binding
	for rows.Next() {
		b := &types.Binding{}
		var forge string
		if err := rows.Scan(&b.GitDir, &forge, &b.Repo, &b.TokenRef, &b.LinkedAt); err != nil {
			return nil, err
		}
		b.Forge = types.ForgeKind(forge)
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
