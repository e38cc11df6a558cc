package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/types"
)

// UpsertIssues inserts or updates rows for the given issues. It never
// removes rows absent from the set -- use ReplaceOpenIssues for the
// sync engine's full reconciliation pass.
func (s *SQLiteStorage) UpsertIssues(ctx context.Context, bindingID string, issues []*types.Issue) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, issue := range issues {
			if err := upsertIssueTx(ctx, tx, bindingID, issue); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func upsertIssueTx(ctx context.Context, tx *sql.Tx, bindingID string, issue *types.Issue) error {
	labelsJSON, err := encodeLabels(issue.Labels)
	if err != nil {
		return fmt.Errorf("encode labels for %s: %w", issue.Key, err)
	}
	assigneesJSON, err := encodeAssignees(issue.Assignees)
	if err != nil {
		return fmt.Errorf("encode assignees for %s: %w", issue.Key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (binding_id, key, native_id, title, body, state, author, labels_json, assignees_json, created_at, updated_at, forge, tombstone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(binding_id, key) DO UPDATE SET
			native_id = excluded.native_id,
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			author = excluded.author,
			labels_json = excluded.labels_json,
			assignees_json = excluded.assignees_json,
			updated_at = excluded.updated_at,
			forge = excluded.forge,
			tombstone = 0
	`, bindingID, issue.Key, issue.NativeID, issue.Title, issue.Body, string(issue.State), issue.Author,
		string(labelsJSON), string(assigneesJSON), issue.CreatedAt, issue.UpdatedAt, string(issue.Forge))
	return err
}

// ReplaceOpenIssues performs the sync engine's replace-open
// reconciliation (SPEC_FULL.md §4.4): every issue in the response is
// upserted, and any row currently marked open whose key is absent
// from the response is left untouched here -- the caller (the sync
// engine) re-fetches those individually to decide closed vs. deleted
// before calling MarkTombstone. This keeps the store free of
// assumptions about adapter fetch semantics.
func (s *SQLiteStorage) ReplaceOpenIssues(ctx context.Context, bindingID string, issues []*types.Issue) error {
	return s.UpsertIssues(ctx, bindingID, issues)
}

// MarkTombstone marks an issue row absent-but-retained. Reads filter
// tombstones out by default.
func (s *SQLiteStorage) MarkTombstone(ctx context.Context, bindingID, key string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE issues SET tombstone = 1 WHERE binding_id = ? AND key = ?`, bindingID, key)
		return err
	})
}

// GetIssue returns one issue row as a consistent snapshot (labels and
// assignees never torn relative to the rest of the row, since they
// are read from the same row in the same query).
func (s *SQLiteStorage) GetIssue(ctx context.Context, bindingID, key string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, native_id, title, body, state, author, labels_json, assignees_json, created_at, updated_at, forge
		FROM issues WHERE binding_id = ? AND key = ? AND tombstone = 0
	`, bindingID, key)

	issue, err := scanIssue(row)
	if err != nil {
		return nil, errNoRows(err, fmt.Sprintf("issue %s not found", key))
	}
	return issue, nil
}

// ListIssues applies state/label/assignee/title filters entirely
// inside the store; the adapter never sees a filter (SPEC_FULL.md
// §4.1).
func (s *SQLiteStorage) ListIssues(ctx context.Context, bindingID string, filter types.IssueFilter) ([]*types.Issue, error) {
	query := `
		SELECT key, native_id, title, body, state, author, labels_json, assignees_json, created_at, updated_at, forge
		FROM issues WHERE binding_id = ? AND tombstone = 0
	`
	args := []interface{}{bindingID}

	switch filter.State {
	case "open", "closed":
		query += " AND state = ?"
		args = append(args, filter.State)
	case "", "all":
		// no state restriction
	}

	if filter.TitleLike != "" {
		query += " AND title LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(filter.TitleLike)+"%")
	}

	rows, err := s.db.QueryContext(ctx, query+" ORDER BY updated_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		if filter.Label != "" && !issue.HasLabel(filter.Label) {
			continue
		}
		if filter.Assignee != "" && !issue.HasAssignee(filter.Assignee) {
			continue
		}
		result = append(result, issue)
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// scanner is the subset of *sql.Row / *sql.Rows that scanIssue needs.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row scanner) (*types.Issue, error) {
	var issue types.Issue
	var state, forge string
	var labelsJSON, assigneesJSON []byte

	if err := row.Scan(&issue.Key, &issue.NativeID, &issue.Title, &issue.Body, &state, &issue.Author,
		&labelsJSON, &assigneesJSON, &issue.CreatedAt, &issue.UpdatedAt, &forge); err != nil {
		return nil, err
	}

	issue.State = types.State(state)
	issue.Forge = types.ForgeKind(forge)

	labels, err := decodeLabels(labelsJSON)
	if err != nil {
		return nil, ferr.Wrap(ferr.StoreCorrupt, fmt.Errorf("decode labels for %s: %w", issue.Key, err))
	}
	issue.Labels = labels

	assignees, err := decodeAssignees(assigneesJSON)
	if err != nil {
		return nil, ferr.Wrap(ferr.StoreCorrupt, fmt.Errorf("decode assignees for %s: %w", issue.Key, err))
	}
	issue.Assignees = assignees

	return &issue, nil
}
