package sqlite

import (
	"context"
	"database/sql"

	"github.com/forgectl/fg/internal/types"
)

// ReadSyncState returns the zero-value state (never-synced) when no
// row yet exists for the binding, rather than an error -- a freshly
// linked repo has no sync history.
func (s *SQLiteStorage) ReadSyncState(ctx context.Context, bindingID string) (*types.SyncState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT binding_id, last_synced_at, last_row_count, cursor, needs_reauth, rate_limited_at
		FROM sync_state WHERE binding_id = ?
	`, bindingID)

	state := &types.SyncState{BindingID: bindingID}
	var lastSynced, rateLimited sql.NullTime
	var needsReauth int
	err := row.Scan(&state.BindingID, &lastSynced, &state.LastRowCount, &state.Cursor, &needsReauth, &rateLimited)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		state.LastSyncedAt = lastSynced.Time
	}
	if rateLimited.Valid {
		state.RateLimitedAt = rateLimited.Time
	}
	state.NeedsReauth = needsReauth != 0
	return state, nil
}

// WriteSyncState persists state after every completed sync cycle.
func (s *SQLiteStorage) WriteSyncState(ctx context.Context, state *types.SyncState) error {
	return withRetry(ctx, func() error {
		var rateLimited interface{}
		if !state.RateLimitedAt.IsZero() {
			rateLimited = state.RateLimitedAt
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sync_state (binding_id, last_synced_at, last_row_count, cursor, needs_reauth, rate_limited_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(binding_id) DO UPDATE SET
				last_synced_at = excluded.last_synced_at,
				last_row_count = excluded.last_row_count,
				cursor = excluded.cursor,
				needs_reauth = excluded.needs_reauth,
				rate_limited_at = excluded.rate_limited_at
		`, state.BindingID, state.LastSyncedAt, state.LastRowCount, state.Cursor, boolToInt(state.NeedsReauth), rateLimited)
		return err
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
