package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgectl/fg/internal/types"
)

func setupTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "fg-store-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := Open(context.Background(), filepath.Join(tmpDir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func sampleIssue(key string, state types.State) *types.Issue {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Issue{
		Key:       key,
		NativeID:  "native-" + key,
		Title:     "Fix X",
		Body:      "body",
		State:     state,
		Author:    "alice",
		Labels:    []types.Label{{Name: "bug"}},
		Assignees: []string{"alice"},
		CreatedAt: now,
		UpdatedAt: now,
		Forge:     types.ForgeGitHub,
	}
}

func TestUpsertAndGetIssue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := sampleIssue("100", types.StateOpen)
	if err := store.UpsertIssues(ctx, "github:acme/widgets", []*types.Issue{issue}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}

	got, err := store.GetIssue(ctx, "github:acme/widgets", "100")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if got.Title != issue.Title || got.State != types.StateOpen {
		t.Fatalf("got %+v, want title=%q state=open", got, issue.Title)
	}
	if !got.HasLabel("bug") {
		t.Fatalf("expected label bug, got %+v", got.Labels)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := sampleIssue("100", types.StateOpen)
	for i := 0; i < 2; i++ {
		if err := store.UpsertIssues(ctx, "github:acme/widgets", []*types.Issue{issue}); err != nil {
			t.Fatalf("UpsertIssues #%d: %v", i, err)
		}
	}

	list, err := store.ListIssues(ctx, "github:acme/widgets", types.IssueFilter{State: "all"})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one row after two identical upserts, got %d", len(list))
	}
}

func TestListIssuesFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	binding := "github:acme/widgets"

	open := sampleIssue("1", types.StateOpen)
	open.Labels = []types.Label{{Name: "bug"}}
	open.Assignees = []string{"alice"}

	closed := sampleIssue("2", types.StateClosed)
	closed.Labels = []types.Label{{Name: "bug"}}
	closed.Assignees = []string{"bob"}

	if err := store.UpsertIssues(ctx, binding, []*types.Issue{open, closed}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}

	got, err := store.ListIssues(ctx, binding, types.IssueFilter{State: "closed", Label: "bug"})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(got) != 1 || got[0].Key != "2" {
		t.Fatalf("expected just issue 2, got %+v", got)
	}

	got, err = store.ListIssues(ctx, binding, types.IssueFilter{State: "closed", Label: "bug", Assignee: "alice"})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no match for assignee alice on closed issue 2, got %+v", got)
	}
}

func TestMarkTombstoneHidesFromReads(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	binding := "github:acme/widgets"

	issue := sampleIssue("5", types.StateOpen)
	if err := store.UpsertIssues(ctx, binding, []*types.Issue{issue}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}
	if err := store.MarkTombstone(ctx, binding, "5"); err != nil {
		t.Fatalf("MarkTombstone: %v", err)
	}

	if _, err := store.GetIssue(ctx, binding, "5"); err == nil {
		t.Fatalf("expected not-found after tombstone")
	}
}

func TestPendingOpReplayOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	binding := "github:acme/widgets"

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.EnqueueOp(ctx, &types.PendingOp{BindingID: binding, Kind: types.OpComment, Payload: []byte("{}")})
		if err != nil {
			t.Fatalf("EnqueueOp #%d: %v", i, err)
		}
		ids = append(ids, id)
	}

	ops, err := store.PeekOps(ctx, binding)
	if err != nil {
		t.Fatalf("PeekOps: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 pending ops, got %d", len(ops))
	}
	for i, op := range ops {
		if op.ID != ids[i] {
			t.Fatalf("op order mismatch at %d: got id %d, want %d", i, op.ID, ids[i])
		}
	}

	if err := store.DeleteOp(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteOp: %v", err)
	}
	remaining, err := store.PeekOps(ctx, binding)
	if err != nil {
		t.Fatalf("PeekOps: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 ops after delete, got %d", len(remaining))
	}
}

func TestBindingLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	b := &types.Binding{GitDir: "/repo", Forge: types.ForgeGitHub, Repo: "acme/widgets", TokenRef: "tok-1", LinkedAt: time.Now()}
	if err := store.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	got, err := store.GetBinding(ctx, "/repo")
	if err != nil {
		t.Fatalf("GetBinding: %v", err)
	}
	if got.Repo != "acme/widgets" {
		t.Fatalf("got repo %q, want acme/widgets", got.Repo)
	}

	if err := store.UpsertIssues(ctx, b.ID(), []*types.Issue{sampleIssue("1", types.StateOpen)}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}

	if err := store.DeleteBinding(ctx, "/repo"); err != nil {
		t.Fatalf("DeleteBinding: %v", err)
	}
	if _, err := store.GetBinding(ctx, "/repo"); err == nil {
		t.Fatalf("expected binding to be gone")
	}
	issues, err := store.ListIssues(ctx, b.ID(), types.IssueFilter{State: "all"})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no orphan issue rows after unlink, got %d", len(issues))
	}
}
