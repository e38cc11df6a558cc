package writepath

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/types"
)

// Replayer drains the pending-op log on a cadence independent of sync,
// while any pending op exists (spec.md §4.5 "Replayer").
type Replayer struct {
	store    store.Store
	path     *Path
	logger   *slog.Logger
	interval time.Duration
}

func NewReplayer(st store.Store, path *Path, logger *slog.Logger) *Replayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{store: st, path: path, logger: logger, interval: 10 * time.Second}
}

// Run loops until ctx is canceled, draining every binding's queue each
// interval.
func (r *Replayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.drainAll(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("replay pass failed", "error", err)
			}
		}
	}
}

func (r *Replayer) drainAll(ctx context.Context) error {
	bindings, err := r.store.ListBindings(ctx)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		if err := r.drainBinding(ctx, b); err != nil {
			r.logger.Warn("replay binding failed", "binding", b.ID(), "error", err)
		}
	}
	return nil
}

// drainBinding replays every pending op for one binding in insertion
// order. A failure on one op stops the rest of that binding's queue
// for this pass (ordering must be preserved) but does not affect other
// bindings.
func (r *Replayer) drainBinding(ctx context.Context, b *types.Binding) error {
	ops, err := r.store.PeekOps(ctx, b.ID())
	if err != nil {
		return err
	}

	for _, op := range ops {
		outcome, notice := r.replayOne(ctx, b, op)
		switch outcome {
		case replaySucceeded:
			if err := r.store.DeleteOp(ctx, op.ID); err != nil {
				return err
			}
		case replaySuperseded:
			// Left in the store with a terminal status (not deleted)
			// so a status read can surface the notice before it's
			// consumed; see daemon.Status.
			if err := r.store.UpdateOpStatus(ctx, op.ID, types.OpSuperseded, "remote state moved past this change; it was not re-applied"); err != nil {
				return err
			}
		case replayPayloadRejected:
			if err := r.store.UpdateOpStatus(ctx, op.ID, types.OpPayloadRejected, notice); err != nil {
				return err
			}
		case replayNeedsManualResolution:
			if err := r.store.UpdateOpStatus(ctx, op.ID, types.OpNeedsManualResolve, "network status unknown after a create attempt; verify manually before retrying"); err != nil {
				return err
			}
			return nil // stop draining this binding; ordering must hold
		case replayDeferred:
			return nil // transient failure; retry whole remaining queue next pass
		}
	}
	return nil
}

type replayOutcome int

const (
	replaySucceeded replayOutcome = iota
	replaySuperseded
	replayPayloadRejected
	replayNeedsManualResolution
	replayDeferred
)

func (r *Replayer) replayOne(ctx context.Context, b *types.Binding, op *types.PendingOp) (replayOutcome, string) {
	adapter, err := r.path.adapterFor(b)
	if err != nil {
		return replayDeferred, ""
	}

	switch op.Kind {
	case types.OpComment:
		var payload types.MutationPayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		if _, err := adapter.Comment(ctx, b.Repo, payload.Key, payload.Value); err != nil {
			return classify(err, replayDeferred)
		}
		return replaySucceeded, ""

	case types.OpCreate:
		var payload types.CreatePayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		issue, err := adapter.CreateIssue(ctx, b.Repo, createRequestFrom(payload))
		if err != nil {
			if errIndeterminate(err) {
				return replayNeedsManualResolution, ""
			}
			return classify(err, replayDeferred)
		}
		if err := r.store.UpsertIssues(ctx, b.ID(), []*types.Issue{issue}); err != nil {
			return replayDeferred, ""
		}
		return replaySucceeded, ""

	case types.OpClose:
		var payload types.MutationPayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		if err := adapter.UpdateIssueState(ctx, b.Repo, payload.Key, types.StateClosed); err != nil {
			return classify(err, replaySuperseded)
		}
		return replaySucceeded, ""

	case types.OpReopen:
		var payload types.MutationPayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		if err := adapter.UpdateIssueState(ctx, b.Repo, payload.Key, types.StateOpen); err != nil {
			return classify(err, replaySuperseded)
		}
		return replaySucceeded, ""

	case types.OpLabelAdd:
		var payload types.MutationPayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		if err := adapter.AddLabel(ctx, b.Repo, payload.Key, payload.Value); err != nil {
			return classify(err, replaySuperseded)
		}
		return replaySucceeded, ""

	case types.OpLabelRemove:
		var payload types.MutationPayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		if err := adapter.RemoveLabel(ctx, b.Repo, payload.Key, payload.Value); err != nil {
			return classify(err, replaySuperseded)
		}
		return replaySucceeded, ""

	case types.OpAssign:
		var payload types.MutationPayload
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return replayDeferred, ""
		}
		if err := adapter.Assign(ctx, b.Repo, payload.Key, payload.Value); err != nil {
			return classify(err, replaySuperseded)
		}
		return replaySucceeded, ""

	default:
		return replayDeferred, ""
	}
}

// classify maps an adapter error to a replay outcome: transient errors
// defer to the next pass; a rejected payload (e.g. a label that does
// not exist on the remote) is reported back to the user verbatim
// rather than read as "superseded"; anything else non-transient falls
// back to the caller's default (usually "superseded" for state/label/
// assignee ops, since a non-transient failure there means the remote
// has moved on from the intended change).
func classify(err error, nonRetryableDefault replayOutcome) (replayOutcome, string) {
	if ferr.Retryable(err) {
		return replayDeferred, ""
	}
	if kind, ok := ferr.KindOf(err); ok && kind == ferr.PayloadRejected {
		return replayPayloadRejected, err.Error()
	}
	return nonRetryableDefault, ""
}

// errIndeterminate reports whether a create's outcome is unknown
// because the request may have been delivered before the connection
// failed (spec.md §4.5 "At-most-one caveat").
func errIndeterminate(err error) bool {
	kind, ok := ferr.KindOf(err)
	return ok && kind == ferr.Connectivity
}

func createRequestFrom(p types.CreatePayload) forge.CreateRequest {
	return forge.CreateRequest{
		Title:          p.Title,
		Body:           p.Body,
		Labels:         p.Labels,
		Assignees:      p.Assignees,
		IdempotencyKey: p.IdempotencyKey,
	}
}
