package binding

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/store/sqlite"
	"github.com/forgectl/fg/internal/types"
)

func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return dir
}

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

func TestLinkThenResolve(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	repo := setupRepo(t)

	b, err := Link(ctx, st, repo, types.ForgeGitHub, "acme/widgets", "github/acme/widgets", false)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if b.Repo != "acme/widgets" {
		t.Fatalf("Repo = %q", b.Repo)
	}

	resolved, err := Resolve(ctx, st, repo)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved == nil || resolved.Repo != "acme/widgets" {
		t.Fatalf("resolved = %+v", resolved)
	}
}

func TestLinkTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	repo := setupRepo(t)

	if _, err := Link(ctx, st, repo, types.ForgeGitHub, "acme/widgets", "tok", false); err != nil {
		t.Fatalf("Link: %v", err)
	}
	_, err := Link(ctx, st, repo, types.ForgeLinear, "ENG", "tok2", false)
	if err == nil {
		t.Fatalf("expected a conflict error on second link")
	}
	if kind, ok := ferr.KindOf(err); !ok || kind != ferr.Conflict {
		t.Fatalf("kind = %v, ok = %v, want conflict", kind, ok)
	}
}

func TestLinkTwiceWithForceReplacesBinding(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	repo := setupRepo(t)

	first, err := Link(ctx, st, repo, types.ForgeGitHub, "acme/widgets", "tok", false)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	issue := &types.Issue{Key: "1", Title: "hello", State: types.StateOpen, Forge: types.ForgeGitHub}
	if err := st.UpsertIssues(ctx, first.ID(), []*types.Issue{issue}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}

	second, err := Link(ctx, st, repo, types.ForgeLinear, "ENG", "tok2", true)
	if err != nil {
		t.Fatalf("Link with force: %v", err)
	}
	if second.Forge != types.ForgeLinear || second.Repo != "ENG" {
		t.Fatalf("second = %+v, want the Linear binding to replace the GitHub one", second)
	}

	issues, err := st.ListIssues(ctx, first.ID(), types.IssueFilter{})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected the replaced binding's cached issues to be gone, got %d", len(issues))
	}
}

func TestUnlinkRemovesIssuesAndBinding(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	repo := setupRepo(t)

	b, err := Link(ctx, st, repo, types.ForgeGitHub, "acme/widgets", "tok", false)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	issue := &types.Issue{Key: "1", Title: "hello", State: types.StateOpen, Forge: types.ForgeGitHub}
	if err := st.UpsertIssues(ctx, b.ID(), []*types.Issue{issue}); err != nil {
		t.Fatalf("UpsertIssues: %v", err)
	}

	if err := Unlink(ctx, st, repo); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	if _, err := st.GetBinding(ctx, b.GitDir); err == nil {
		t.Fatalf("expected binding to be gone")
	}
	issues, err := st.ListIssues(ctx, b.ID(), types.IssueFilter{})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no orphan issues, got %d", len(issues))
	}
}

func TestUnlinkWithoutBindingIsNotFound(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	repo := setupRepo(t)

	err := Unlink(ctx, st, repo)
	if err == nil {
		t.Fatalf("expected not-found error")
	}
	if kind, ok := ferr.KindOf(err); !ok || kind != ferr.NotFound {
		t.Fatalf("kind = %v, ok = %v, want not_found", kind, ok)
	}
}
