package git

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindGitDirDirect(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("Mkdir .git: %v", err)
	}
	sub := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	got, err := FindGitDir(sub)
	if err != nil {
		t.Fatalf("FindGitDir: %v", err)
	}
	wantAbs, _ := filepath.Abs(root)
	if got != wantAbs {
		t.Fatalf("got %s, want %s", got, wantAbs)
	}
}

func TestFindGitDirWorktreePointer(t *testing.T) {
	root := t.TempDir()
	realGitDir := filepath.Join(root, "real.git")
	if err := os.MkdirAll(realGitDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	worktree := filepath.Join(root, "worktree")
	if err := os.MkdirAll(worktree, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: "+realGitDir+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := FindGitDir(worktree)
	if err != nil {
		t.Fatalf("FindGitDir: %v", err)
	}
	wantAbs, _ := filepath.Abs(worktree)
	if got != wantAbs {
		t.Fatalf("got %s, want %s", got, wantAbs)
	}
}

func TestFindGitDirNotFound(t *testing.T) {
	root := t.TempDir()
	if _, err := FindGitDir(root); err == nil {
		t.Fatalf("expected an error outside any git repository")
	}
}
