package sync

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/store/sqlite"
	"github.com/forgectl/fg/internal/types"
)

type fakeSeq struct {
	pages [][]*types.Issue
	idx   int
}

func (f *fakeSeq) Next(ctx context.Context) ([]*types.Issue, bool, error) {
	if f.idx >= len(f.pages) {
		return nil, true, nil
	}
	page := f.pages[f.idx]
	f.idx++
	return page, f.idx >= len(f.pages), nil
}

type fakeAdapter struct {
	mu        sync.Mutex
	pages     [][]*types.Issue
	getIssue  func(key string) (*types.Issue, error)
}

func (f *fakeAdapter) Kind() types.ForgeKind { return types.ForgeGitHub }
func (f *fakeAdapter) AuthProbe(ctx context.Context, repo string) (forge.Identity, error) {
	return forge.Identity{}, nil
}
func (f *fakeAdapter) ListIssues(ctx context.Context, repo, cursor string) forge.IssueSeq {
	return &fakeSeq{pages: f.pages}
}
func (f *fakeAdapter) GetIssue(ctx context.Context, repo, key string) (*types.Issue, error) {
	if f.getIssue != nil {
		return f.getIssue(key)
	}
	return nil, ferr.New(ferr.NotFound, "not found")
}
func (f *fakeAdapter) CreateIssue(ctx context.Context, repo string, req forge.CreateRequest) (*types.Issue, error) {
	return nil, nil
}
func (f *fakeAdapter) UpdateIssueState(ctx context.Context, repo, key string, state types.State) error {
	return nil
}
func (f *fakeAdapter) AddLabel(ctx context.Context, repo, key, name string) error    { return nil }
func (f *fakeAdapter) RemoveLabel(ctx context.Context, repo, key, name string) error { return nil }
func (f *fakeAdapter) Assign(ctx context.Context, repo, key, handle string) error    { return nil }
func (f *fakeAdapter) Comment(ctx context.Context, repo, key, body string) (string, error) {
	return "", nil
}

var _ forge.Adapter = (*fakeAdapter)(nil)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSyncOneUpsertsOpenIssues(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	b := &types.Binding{GitDir: "/repo", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	adapter := &fakeAdapter{pages: [][]*types.Issue{{
		{Key: "1", Title: "first", State: types.StateOpen, Forge: types.ForgeGitHub, UpdatedAt: time.Now()},
		{Key: "2", Title: "second", State: types.StateClosed, Forge: types.ForgeGitHub, UpdatedAt: time.Now()},
	}}}

	engine := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, DefaultConfig(), slog.Default())
	if err := engine.SyncOne(ctx, b); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}

	issues, err := st.ListIssues(ctx, b.ID(), types.IssueFilter{})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}
}

func TestSyncOneTombstonesDeletedIssue(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	b := &types.Binding{GitDir: "/repo", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}
	if err := st.UpsertIssues(ctx, b.ID(), []*types.Issue{
		{Key: "stale", Title: "gone", State: types.StateOpen, Forge: types.ForgeGitHub},
	}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}

	adapter := &fakeAdapter{pages: [][]*types.Issue{{}}}
	engine := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, DefaultConfig(), slog.Default())
	if err := engine.SyncOne(ctx, b); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}

	if _, err := st.GetIssue(ctx, b.ID(), "stale"); err == nil {
		t.Fatalf("expected tombstoned issue to be hidden from reads")
	}
}

func TestSyncOnePausesOnAuthFailure(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	b := &types.Binding{GitDir: "/repo", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	adapter := &authFailAdapter{}
	engine := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, DefaultConfig(), slog.Default())
	if err := engine.SyncOne(ctx, b); err == nil {
		t.Fatalf("expected an error from SyncOne")
	}

	state, err := st.ReadSyncState(ctx, b.ID())
	if err != nil {
		t.Fatalf("ReadSyncState: %v", err)
	}
	if state == nil || !state.NeedsReauth {
		t.Fatalf("expected needs_reauth to be set, got %+v", state)
	}
}

type authFailAdapter struct{ fakeAdapter }

func (a *authFailAdapter) ListIssues(ctx context.Context, repo, cursor string) forge.IssueSeq {
	return &authFailSeq{}
}

type authFailSeq struct{}

func (s *authFailSeq) Next(ctx context.Context) ([]*types.Issue, bool, error) {
	return nil, false, ferr.New(ferr.Authentication, "bad credential")
}

func TestCadenceTiers(t *testing.T) {
	st := setupTestStore(t)
	engine := New(st, nil, DefaultConfig(), slog.Default())

	engine.Touch("b1")
	if got := engine.cadence("b1"); got != engine.cfg.Active {
		t.Fatalf("cadence = %v, want active tier %v", got, engine.cfg.Active)
	}

	if got := engine.cadence("unknown"); got != engine.cfg.Idle {
		t.Fatalf("cadence for untouched binding = %v, want idle tier %v", got, engine.cfg.Idle)
	}
}
