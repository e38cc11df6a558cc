// Package git resolves a filesystem path to the git directory that
// owns it, the unit internal/binding keys every binding on
// (SPEC_FULL.md §4.3).
package git

import (
	"os"
	"path/filepath"
	"strings"
)

// FindGitDir walks upward from start looking for a ".git" entry,
// returning the directory that contains it. A ".git" file (as used by
// worktrees and submodules) must hold a "gitdir: <path>" line; the
// directory containing that file is returned, not the path it names.
func FindGitDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, ".git")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return dir, nil
			}
			if _, err := resolveGitFile(candidate); err != nil {
				return "", err
			}
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// resolveGitFile reads a ".git" file (worktree/submodule pointer) and
// returns the real git directory it names. The caller only needs to
// know such a pointer resolves successfully; the binding key remains
// the worktree's own directory, not the resolved git dir, since two
// worktrees of the same repo are distinct bindings.
func resolveGitFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", os.ErrInvalid
	}
	target := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return target, nil
}
