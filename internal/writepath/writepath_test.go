package writepath

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/store/sqlite"
	"github.com/forgectl/fg/internal/types"
)

type stubAdapter struct {
	createErr  error
	created    *types.Issue
	commentErr error
	stateErr   error
	calls      int
}

func (s *stubAdapter) Kind() types.ForgeKind { return types.ForgeGitHub }
func (s *stubAdapter) AuthProbe(ctx context.Context, repo string) (forge.Identity, error) {
	return forge.Identity{}, nil
}
func (s *stubAdapter) ListIssues(ctx context.Context, repo, cursor string) forge.IssueSeq { return nil }
func (s *stubAdapter) GetIssue(ctx context.Context, repo, key string) (*types.Issue, error) {
	return nil, nil
}
func (s *stubAdapter) CreateIssue(ctx context.Context, repo string, req forge.CreateRequest) (*types.Issue, error) {
	s.calls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}
func (s *stubAdapter) UpdateIssueState(ctx context.Context, repo, key string, state types.State) error {
	return s.stateErr
}
func (s *stubAdapter) AddLabel(ctx context.Context, repo, key, name string) error    { return nil }
func (s *stubAdapter) RemoveLabel(ctx context.Context, repo, key, name string) error { return nil }
func (s *stubAdapter) Assign(ctx context.Context, repo, key, handle string) error    { return nil }
func (s *stubAdapter) Comment(ctx context.Context, repo, key, body string) (string, error) {
	return "c1", s.commentErr
}

var _ forge.Adapter = (*stubAdapter)(nil)

type noopResync struct{}

func (noopResync) SyncNow(ctx context.Context, b *types.Binding) error { return nil }

func setupStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCreateDirectSuccess(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	b := &types.Binding{GitDir: "/r", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	adapter := &stubAdapter{created: &types.Issue{Key: "42", Title: "hi", State: types.StateOpen, Forge: types.ForgeGitHub, CreatedAt: time.Now(), UpdatedAt: time.Now()}}
	path := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, noopResync{})

	issue, queued, err := path.Create(ctx, b, forge.CreateRequest{Title: "hi"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if queued {
		t.Fatalf("expected direct create, got queued")
	}
	if issue.Key != "42" {
		t.Fatalf("Key = %q", issue.Key)
	}

	got, err := st.GetIssue(ctx, b.ID(), "42")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if got.Title != "hi" {
		t.Fatalf("Title = %q", got.Title)
	}
}

func TestCreateQueuesOnConnectivityError(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	b := &types.Binding{GitDir: "/r", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	adapter := &stubAdapter{createErr: ferr.New(ferr.Connectivity, "dial tcp: timeout")}
	path := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, noopResync{})

	issue, queued, err := path.Create(ctx, b, forge.CreateRequest{Title: "hi"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !queued || issue != nil {
		t.Fatalf("expected queued ack, got issue=%v queued=%v", issue, queued)
	}

	ops, err := st.PeekOps(ctx, b.ID())
	if err != nil {
		t.Fatalf("PeekOps: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != types.OpCreate {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestReplayerDrainsCommentOp(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	b := &types.Binding{GitDir: "/r", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	adapter := &stubAdapter{}
	path := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, noopResync{})
	if _, err := path.queue(ctx, b, types.OpComment, types.MutationPayload{Key: "1", Value: "hello"}); err != nil {
		t.Fatalf("queue: %v", err)
	}

	replayer := NewReplayer(st, path, nil)
	if err := replayer.drainAll(ctx); err != nil {
		t.Fatalf("drainAll: %v", err)
	}

	ops, err := st.PeekOps(ctx, b.ID())
	if err != nil {
		t.Fatalf("PeekOps: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected op to be drained, got %+v", ops)
	}
}

func TestReplayerStopsBindingOnManualResolution(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	b := &types.Binding{GitDir: "/r", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	adapter := &stubAdapter{createErr: ferr.New(ferr.Connectivity, "timeout")}
	path := New(st, map[types.ForgeKind]forge.Adapter{types.ForgeGitHub: adapter}, noopResync{})
	if _, err := path.queue(ctx, b, types.OpCreate, types.CreatePayload{Title: "hi", IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, err := path.queue(ctx, b, types.OpComment, types.MutationPayload{Key: "1", Value: "hello"}); err != nil {
		t.Fatalf("queue: %v", err)
	}

	replayer := NewReplayer(st, path, nil)
	if err := replayer.drainBinding(ctx, b); err != nil {
		t.Fatalf("drainBinding: %v", err)
	}

	ops, err := st.PeekOps(ctx, b.ID())
	if err != nil {
		t.Fatalf("PeekOps: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != types.OpComment {
		t.Fatalf("expected only the comment op to remain pending (never attempted), got %+v", ops)
	}
}
