package sqlite

import (
	"context"
	"fmt"

	"github.com/forgectl/fg/internal/types"
)

// EnqueueOp appends a pending write; ops for one binding are totally
// ordered by this auto-increment id, and that order is the replay
// order (SPEC_FULL.md §3 invariants).
func (s *SQLiteStorage) EnqueueOp(ctx context.Context, op *types.PendingOp) (int64, error) {
	var id int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO pending_ops (binding_id, kind, payload, status, created_at)
			VALUES (?, ?, ?, 'pending', CURRENT_TIMESTAMP)
		`, op.BindingID, string(op.Kind), op.Payload)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// PeekOps returns pending ops for a binding in replay order, without
// removing them.
func (s *SQLiteStorage) PeekOps(ctx context.Context, bindingID string) ([]*types.PendingOp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, binding_id, kind, payload, status, notice, created_at
		FROM pending_ops WHERE binding_id = ? AND status = 'pending' ORDER BY id ASC
	`, bindingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*types.PendingOp
	for rows.Next() {
		op := &types.PendingOp{}
		var kind, status string
		if err := rows.Scan(&op.ID, &op.BindingID, &kind, &op.Payload, &status, &op.Notice, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Kind = types.OpKind(kind)
		op.Status = types.OpStatus(status)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// PeekTerminalOps returns ops that settled into a terminal state short
// of success (superseded, needs-manual-resolution, payload-rejected)
// without removing them, so a status read can surface their notices
// before they're consumed.
func (s *SQLiteStorage) PeekTerminalOps(ctx context.Context, bindingID string) ([]*types.PendingOp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, binding_id, kind, payload, status, notice, created_at
		FROM pending_ops WHERE binding_id = ? AND status NOT IN ('pending', 'succeeded') ORDER BY id ASC
	`, bindingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*types.PendingOp
	for rows.Next() {
		op := &types.PendingOp{}
		var kind, status string
		if err := rows.Scan(&op.ID, &op.BindingID, &kind, &op.Payload, &status, &op.Notice, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Kind = types.OpKind(kind)
		op.Status = types.OpStatus(status)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// UpdateOpStatus records a terminal outcome short of deletion (e.g.
// superseded, needs-manual-resolution) so `status` can surface a
// user-visible notice on the next query before the row is removed.
func (s *SQLiteStorage) UpdateOpStatus(ctx context.Context, id int64, status types.OpStatus, notice string) error {
	return withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE pending_ops SET status = ?, notice = ? WHERE id = ?`, string(status), notice, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("pending op %d not found", id)
		}
		return nil
	})
}

// DeleteOp removes a pending op once it has succeeded or the user has
// been informed of a terminal outcome.
func (s *SQLiteStorage) DeleteOp(ctx context.Context, id int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM pending_ops WHERE id = ?`, id)
		return err
	})
}
