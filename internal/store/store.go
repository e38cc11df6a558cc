// Package store defines the contract for the local cache: the
// embedded, file-backed database that serves reads in sub-millisecond
// time and durably queues writes made while offline (see SPEC_FULL.md
// §4.1). internal/store/sqlite provides the only implementation.
package store

import (
	"context"

	"github.com/forgectl/fg/internal/types"
)

// Store is the full set of typed operations the daemon and CLI use
// against the cache. The daemon and each CLI invocation open their own
// read-write connection to the same on-disk file, and write-ahead-log
// mode lets them coexist.
type Store interface {
	// Issues
	UpsertIssues(ctx context.Context, bindingID string, issues []*types.Issue) error
	ReplaceOpenIssues(ctx context.Context, bindingID string, issues []*types.Issue) error
	ListIssues(ctx context.Context, bindingID string, filter types.IssueFilter) ([]*types.Issue, error)
	GetIssue(ctx context.Context, bindingID, key string) (*types.Issue, error)
	MarkTombstone(ctx context.Context, bindingID, key string) error

	// Pending-op log
	EnqueueOp(ctx context.Context, op *types.PendingOp) (int64, error)
	PeekOps(ctx context.Context, bindingID string) ([]*types.PendingOp, error)
	PeekTerminalOps(ctx context.Context, bindingID string) ([]*types.PendingOp, error)
	UpdateOpStatus(ctx context.Context, id int64, status types.OpStatus, notice string) error
	DeleteOp(ctx context.Context, id int64) error

	// Bindings
	GetBinding(ctx context.Context, gitDir string) (*types.Binding, error)
	PutBinding(ctx context.Context, b *types.Binding) error
	DeleteBinding(ctx context.Context, gitDir string) error
	ListBindings(ctx context.Context) ([]*types.Binding, error)

	// Sync state
	ReadSyncState(ctx context.Context, bindingID string) (*types.SyncState, error)
	WriteSyncState(ctx context.Context, state *types.SyncState) error

	// Worktree-issue links
	PutWorktreeIssue(ctx context.Context, w *types.WorktreeIssue) error
	GetWorktreeIssue(ctx context.Context, gitDir string) (*types.WorktreeIssue, error)
	DeleteWorktreeIssue(ctx context.Context, gitDir string) error

	Close() error
}
