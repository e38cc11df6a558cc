package sync

import (
	"context"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/types"
)

// SyncOne performs one reconciliation tick against a single binding:
// fetch every open issue plus every closed issue updated since the
// stored cursor, upsert what came back, then re-check any
// previously-open issue absent from the response to learn whether it
// closed or was deleted (spec.md §4.4 "Loop").
func (e *Engine) SyncOne(ctx context.Context, b *types.Binding) error {
	adapter, err := e.adapterFor(b)
	if err != nil {
		e.markTick(b.ID(), err.Error())
		return err
	}

	state, err := e.store.ReadSyncState(ctx, b.ID())
	if err != nil {
		e.markTick(b.ID(), err.Error())
		return err
	}
	if state != nil && state.NeedsReauth {
		// Paused until the user re-links with a fresh credential.
		return nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	previouslyOpen, err := e.store.ListIssues(ctx, b.ID(), types.IssueFilter{State: "open"})
	if err != nil {
		e.markTick(b.ID(), err.Error())
		return err
	}
	seenKeys := make(map[string]bool, len(previouslyOpen))
	for _, issue := range previouslyOpen {
		seenKeys[issue.Key] = false
	}

	cursor := ""
	if state != nil {
		cursor = state.Cursor
	}
	tickStart := time.Now().UTC().Format(time.RFC3339)

	seq := adapter.ListIssues(ctx, b.Repo, cursor)
	var fetched []*types.Issue
	rowCount := 0
	for {
		page, done, err := seq.Next(ctx)
		if err != nil {
			if kind, ok := ferr.KindOf(err); ok && kind == ferr.Authentication {
				e.pauseForReauth(ctx, b)
				return err
			}
			if ferr.Retryable(err) {
				e.logger.Info("sync tick deferred", "binding", b.ID(), "error", err)
				e.markTick(b.ID(), err.Error())
				return nil
			}
			e.markTick(b.ID(), err.Error())
			return err
		}
		for _, issue := range page {
			if _, ok := seenKeys[issue.Key]; ok {
				seenKeys[issue.Key] = true
			}
			fetched = append(fetched, issue)
		}
		rowCount += len(page)
		if done {
			break
		}
	}

	if err := e.store.ReplaceOpenIssues(ctx, b.ID(), onlyOpen(fetched)); err != nil {
		e.markTick(b.ID(), err.Error())
		return err
	}
	for _, issue := range fetched {
		if issue.State == types.StateClosed {
			if err := e.store.UpsertIssues(ctx, b.ID(), []*types.Issue{issue}); err != nil {
				e.markTick(b.ID(), err.Error())
				return err
			}
		}
	}

	for key, seen := range seenKeys {
		if seen {
			continue
		}
		if err := e.reconcileMissing(ctx, b, adapter, key); err != nil {
			e.logger.Warn("reconcile missing issue failed", "binding", b.ID(), "key", key, "error", err)
		}
	}

	if err := e.store.WriteSyncState(ctx, &types.SyncState{
		BindingID:    b.ID(),
		LastSyncedAt: time.Now(),
		LastRowCount: rowCount,
		Cursor:       tickStart,
	}); err != nil {
		e.markTick(b.ID(), err.Error())
		return err
	}

	e.markTick(b.ID(), "")
	return nil
}

// reconcileMissing re-fetches an issue that was open locally but absent
// from the latest page of results, to learn whether it closed or was
// deleted upstream. A not-found result marks a tombstone; any other
// error is logged and skipped rather than failing the whole cycle
// (spec.md §4.4 "Failure").
func (e *Engine) reconcileMissing(ctx context.Context, b *types.Binding, adapter forge.Adapter, key string) error {
	issue, err := adapter.GetIssue(ctx, b.Repo, key)
	if err != nil {
		if kind, ok := ferr.KindOf(err); ok && kind == ferr.NotFound {
			return e.store.MarkTombstone(ctx, b.ID(), key)
		}
		return err
	}
	return e.store.UpsertIssues(ctx, b.ID(), []*types.Issue{issue})
}

func (e *Engine) pauseForReauth(ctx context.Context, b *types.Binding) {
	state, err := e.store.ReadSyncState(ctx, b.ID())
	if err != nil || state == nil {
		state = &types.SyncState{BindingID: b.ID()}
	}
	state.NeedsReauth = true
	if err := e.store.WriteSyncState(ctx, state); err != nil {
		e.logger.Warn("failed to persist needs-reauth state", "binding", b.ID(), "error", err)
	}
	e.markTick(b.ID(), "authentication failed; run `fg link` to re-authenticate")
}

func onlyOpen(issues []*types.Issue) []*types.Issue {
	open := make([]*types.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.State == types.StateOpen {
			open = append(open, issue)
		}
	}
	return open
}
