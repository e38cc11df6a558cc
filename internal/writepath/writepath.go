// Package writepath dispatches mutating calls either directly against
// the adapter or, when the adapter is unreachable, into the durable
// pending-op queue for the daemon's replayer to drain later
// (SPEC_FULL.md §4.5 / spec.md §4.5).
package writepath

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/types"
)

// Resyncer lets the write path trigger a targeted sync-now after a
// mutation succeeds, so the freshly-changed issue's cache row reflects
// the remote without waiting for the next scheduled tick. It is
// satisfied by *sync.Engine without writepath importing sync directly,
// avoiding an import cycle between the two daemon-resident components.
type Resyncer interface {
	SyncNow(ctx context.Context, b *types.Binding) error
}

// Path dispatches a single mutating call for a binding.
type Path struct {
	store store.Store
	resync Resyncer

	mu       sync.Mutex
	adapters map[types.ForgeKind]forge.Adapter
}

func New(st store.Store, adapters map[types.ForgeKind]forge.Adapter, resync Resyncer) *Path {
	return &Path{store: st, adapters: adapters, resync: resync}
}

// SetAdapters replaces the adapter set, used by the daemon's Reload to
// pick up a newly linked forge kind or a rotated credential.
func (p *Path) SetAdapters(adapters map[types.ForgeKind]forge.Adapter) {
	p.mu.Lock()
	p.adapters = adapters
	p.mu.Unlock()
}

func (p *Path) adapterFor(b *types.Binding) (forge.Adapter, error) {
	p.mu.Lock()
	a, ok := p.adapters[b.Forge]
	p.mu.Unlock()
	if !ok {
		return nil, ferr.New(ferr.Protocol, "no adapter registered for forge "+string(b.Forge))
	}
	return a, nil
}

// queue appends kind/payload to the pending-op log and returns the
// "queued" acknowledgement callers surface to the user.
func (p *Path) queue(ctx context.Context, b *types.Binding, kind types.OpKind, payload interface{}) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	return p.store.EnqueueOp(ctx, &types.PendingOp{
		BindingID: b.ID(),
		Kind:      kind,
		Payload:   data,
		Status:    types.OpPending,
	})
}

// Create creates an issue directly if the adapter is reachable,
// otherwise queues it with an idempotency key (spec.md §4.5
// at-most-one caveat). A replayed create that fails with a
// connectivity error is not retried; the replayer marks it
// needs-manual-resolution.
func (p *Path) Create(ctx context.Context, b *types.Binding, req forge.CreateRequest) (*types.Issue, bool, error) {
	adapter, err := p.adapterFor(b)
	if err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	issue, err := adapter.CreateIssue(ctx, b.Repo, req)
	if err == nil {
		if err := p.store.UpsertIssues(ctx, b.ID(), []*types.Issue{issue}); err != nil {
			return issue, false, err
		}
		return issue, false, nil
	}

	if !shouldQueue(err) {
		return nil, false, err
	}

	if _, err := p.queue(ctx, b, types.OpCreate, types.CreatePayload{
		Title:          req.Title,
		Body:           req.Body,
		Labels:         req.Labels,
		Assignees:      req.Assignees,
		IdempotencyKey: req.IdempotencyKey,
	}); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// Comment posts a comment directly, or queues it (always safely
// retryable since comments are append-only).
func (p *Path) Comment(ctx context.Context, b *types.Binding, key, body string) (bool, error) {
	adapter, err := p.adapterFor(b)
	if err != nil {
		return false, err
	}

	if _, err := adapter.Comment(ctx, b.Repo, key, body); err == nil {
		p.resyncKey(ctx, b)
		return false, nil
	} else if !shouldQueue(err) {
		return false, err
	}

	if _, err := p.queue(ctx, b, types.OpComment, types.MutationPayload{Key: key, Value: body}); err != nil {
		return false, err
	}
	return true, nil
}

// SetState closes or reopens an issue directly, or queues the mutation.
func (p *Path) SetState(ctx context.Context, b *types.Binding, key string, state types.State) (bool, error) {
	adapter, err := p.adapterFor(b)
	if err != nil {
		return false, err
	}

	kind := types.OpClose
	if state == types.StateOpen {
		kind = types.OpReopen
	}

	if err := adapter.UpdateIssueState(ctx, b.Repo, key, state); err == nil {
		p.resyncKey(ctx, b)
		return false, nil
	} else if !shouldQueue(err) {
		return false, err
	}

	if _, err := p.queue(ctx, b, kind, types.MutationPayload{Key: key}); err != nil {
		return false, err
	}
	return true, nil
}

// Label adds or removes a label directly, or queues the mutation.
func (p *Path) Label(ctx context.Context, b *types.Binding, key, name string, add bool) (bool, error) {
	adapter, err := p.adapterFor(b)
	if err != nil {
		return false, err
	}

	kind := types.OpLabelAdd
	var callErr error
	if add {
		callErr = adapter.AddLabel(ctx, b.Repo, key, name)
	} else {
		kind = types.OpLabelRemove
		callErr = adapter.RemoveLabel(ctx, b.Repo, key, name)
	}

	if callErr == nil {
		p.resyncKey(ctx, b)
		return false, nil
	}
	if !shouldQueue(callErr) {
		return false, callErr
	}

	if _, err := p.queue(ctx, b, kind, types.MutationPayload{Key: key, Value: name}); err != nil {
		return false, err
	}
	return true, nil
}

// Assign assigns an issue directly, or queues the mutation.
func (p *Path) Assign(ctx context.Context, b *types.Binding, key, handle string) (bool, error) {
	adapter, err := p.adapterFor(b)
	if err != nil {
		return false, err
	}

	if err := adapter.Assign(ctx, b.Repo, key, handle); err == nil {
		p.resyncKey(ctx, b)
		return false, nil
	} else if !shouldQueue(err) {
		return false, err
	}

	if _, err := p.queue(ctx, b, types.OpAssign, types.MutationPayload{Key: key, Value: handle}); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Path) resyncKey(ctx context.Context, b *types.Binding) {
	if p.resync == nil {
		return
	}
	_ = p.resync.SyncNow(ctx, b)
}

// shouldQueue reports whether err reflects the adapter being
// unreachable (connectivity) rather than a definitive answer from the
// remote, the trigger for falling back to queued mode.
func shouldQueue(err error) bool {
	kind, ok := ferr.KindOf(err)
	if !ok {
		return false
	}
	return kind == ferr.Connectivity || kind == ferr.RateLimit
}
