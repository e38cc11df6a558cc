// Package forge defines the polymorphic boundary between the sync
// engine/write path and a particular issue tracker's API. Adapters
// translate to and from internal/types.Issue and never leak
// forge-native types past this boundary (SPEC_FULL.md §4.2).
package forge

import (
	"context"
	"time"

	"github.com/forgectl/fg/internal/types"
)

// Identity is the result of an auth probe: the authenticated user's
// handle on the forge, used to populate status output.
type Identity struct {
	Handle string
	Forge  types.ForgeKind
}

// CreateRequest is the input to Adapter.CreateIssue.
type CreateRequest struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string

	// IdempotencyKey is attached by the write path to every create and
	// stored with a queued one (SPEC_FULL.md §4.5 at-most-one caveat).
	// Neither adapter sends it, and the replayer does not retry a
	// create whose attempt failed with a connectivity error: it marks
	// the op needs-manual-resolution.
	IdempotencyKey string
}

// IssueSeq is the lazy sequence list_issues returns: Next yields one
// page at a time so the caller (the sync engine) never holds an
// entire remote issue set in memory at once, and can stop paginating
// early once it has seen enough. Pagination and rate limiting happen
// inside Next.
type IssueSeq interface {
	// Next returns the next page of issues. io.EOF-equivalent
	// termination is signaled by returning an empty slice and
	// done=true together with a nil error.
	Next(ctx context.Context) (issues []*types.Issue, done bool, err error)
}

// Adapter is the single polymorphic surface every forge implements
// (SPEC_FULL.md §4.2). repo is the adapter-specific remote identifier
// stored on the binding ("owner/name" for GitHub, a team key for
// Linear); key is the issue's display identifier.
type Adapter interface {
	Kind() types.ForgeKind

	// AuthProbe validates the credential and returns the authenticated
	// identity. Returns a ferr.Authentication error on 401/403.
	AuthProbe(ctx context.Context, repo string) (Identity, error)

	// ListIssues returns a lazy sequence covering every open issue,
	// plus every closed issue updated since sinceCursor (or every
	// closed issue when sinceCursor is empty, on first sync).
	ListIssues(ctx context.Context, repo string, sinceCursor string) IssueSeq

	GetIssue(ctx context.Context, repo, key string) (*types.Issue, error)
	CreateIssue(ctx context.Context, repo string, req CreateRequest) (*types.Issue, error)
	UpdateIssueState(ctx context.Context, repo, key string, state types.State) error
	AddLabel(ctx context.Context, repo, key, name string) error
	RemoveLabel(ctx context.Context, repo, key, name string) error
	Assign(ctx context.Context, repo, key, handle string) error
	Comment(ctx context.Context, repo, key, body string) (commentID string, err error)
}

// Budget is the rate-limit state an adapter learns from response
// metadata: remaining requests and when the window resets. The sync
// engine consults it to decide whether to defer rather than treat
// exhaustion as failure (SPEC_FULL.md §4.2 "Rate limiting").
type Budget struct {
	Remaining int
	ResetAt   time.Time
}

// Exhausted reports whether the budget is currently depleted.
func (b Budget) Exhausted() bool {
	return b.Remaining <= 0 && time.Now().Before(b.ResetAt)
}
