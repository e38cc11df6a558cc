// Package types defines the normalized data model shared by the store,
// the forge adapters, the sync engine, and the write path. A forge
// adapter never leaks its native types past this boundary.
package types

import "time"

// ForgeKind identifies which remote issue tracker a binding talks to.
// The set is small and enumerated by design (see DESIGN.md); adding a
// forge means adding a case here and an adapter, not opening the enum.
type ForgeKind string

const (
	ForgeGitHub ForgeKind = "github"
	ForgeLinear ForgeKind = "linear"
)

// State is the normalized issue state. Adapters translate their
// native state (two-valued for GitHub, workflow-based for Linear)
// onto this pair.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Label is a structured label value: a name and an optional color.
// The store must accept a legacy flat-string encoding on read and
// upgrade it to this encoding on write.
type Label struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
}

// Issue is the normalized issue record. Key is the forge's
// human-facing display identifier (a number for GitHub, a
// team-prefixed identifier like "ABC-42" for Linear). NativeID is the
// forge's internal identity (also a stringified number for GitHub, a
// UUID for Linear) and is never shown to the user but is required for
// mutation calls against adapters with opaque identities.
type Issue struct {
	Key         string    `json:"key"`
	NativeID    string    `json:"-"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	State       State     `json:"state"`
	Author      string    `json:"author"`
	Labels      []Label   `json:"labels"`
	Assignees   []string  `json:"assignees"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Forge       ForgeKind `json:"forge"`
	Tombstone   bool      `json:"-"`
}

// HasLabel reports whether the issue carries a label with the given
// name (exact match).
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// HasAssignee reports whether handle appears in the assignee list.
func (i *Issue) HasAssignee(handle string) bool {
	for _, a := range i.Assignees {
		if a == handle {
			return true
		}
	}
	return false
}

// IssueFilter narrows the result of Store.ListIssues. All filtering
// happens in the store; adapters never see a filter.
type IssueFilter struct {
	State     string // "open", "closed", or "" for all
	Label     string
	Assignee  string
	TitleLike string
}

// Binding is the persistent association between a local git directory
// and exactly one forge repository plus an opaque token reference.
type Binding struct {
	GitDir     string    `json:"git_dir"`
	Forge      ForgeKind `json:"forge"`
	Repo       string    `json:"repo"` // forge-specific shape: "owner/name" or a Linear team key
	TokenRef   string    `json:"token_ref"`
	LinkedAt   time.Time `json:"linked_at"`
}

// ID returns a stable identity string for the binding, used as the
// store's binding key across tables (sync state, pending ops).
func (b *Binding) ID() string {
	return string(b.Forge) + ":" + b.Repo
}

// OpKind enumerates the write operations that can be queued.
type OpKind string

const (
	OpCreate       OpKind = "create"
	OpComment      OpKind = "comment"
	OpClose        OpKind = "close"
	OpReopen       OpKind = "reopen"
	OpLabelAdd     OpKind = "label-add"
	OpLabelRemove  OpKind = "label-remove"
	OpAssign       OpKind = "assign"
)

// OpStatus is the outcome a replayed op settles into. A row is
// deleted from the store once it reaches Succeeded; the other
// terminal values are surfaced to the user and then deleted.
type OpStatus string

const (
	OpPending            OpStatus = "pending"
	OpSucceeded          OpStatus = "succeeded"
	OpSuperseded         OpStatus = "superseded"
	OpNeedsManualResolve OpStatus = "needs-manual-resolution"
	OpPayloadRejected    OpStatus = "payload-rejected"
)

// CreatePayload is the self-describing payload of an OpCreate pending
// op; it captures everything needed to replay without re-consulting
// user state.
type CreatePayload struct {
	Title          string   `json:"title"`
	Body           string   `json:"body,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	Assignees      []string `json:"assignees,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// MutationPayload covers comment/close/reopen/label/assign ops; Key
// addresses the issue, Value carries the op-specific argument (the
// comment text, the label name, or the assignee handle). Close and
// reopen leave Value empty.
type MutationPayload struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// PendingOp is a durably queued write, replayed in insertion order
// within a binding.
type PendingOp struct {
	ID        int64     `json:"id"`
	BindingID string    `json:"binding_id"`
	Kind      OpKind    `json:"kind"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	Status    OpStatus  `json:"status"`
	Notice    string    `json:"notice,omitempty"`
}

// SyncState is the per-binding bookkeeping written after every
// completed sync cycle.
type SyncState struct {
	BindingID      string    `json:"binding_id"`
	LastSyncedAt   time.Time `json:"last_synced_at"`
	LastRowCount   int       `json:"last_row_count"`
	Cursor         string    `json:"cursor,omitempty"`
	NeedsReauth    bool      `json:"needs_reauth"`
	RateLimitedAt  time.Time `json:"rate_limited_at,omitempty"`
}

// WorktreeIssue links a git directory to an issue key, created by
// `start` and deleted by `cleanup`. It is never mirrored to the
// remote.
type WorktreeIssue struct {
	GitDir    string    `json:"git_dir"`
	BindingID string    `json:"binding_id"`
	IssueKey  string    `json:"issue_key"`
	CreatedAt time.Time `json:"created_at"`
}
