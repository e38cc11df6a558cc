// Package binding resolves a filesystem path to its forge binding and
// manages the link/unlink lifecycle (SPEC_FULL.md §4.3 / spec.md §4.3).
package binding

import (
	"context"
	"fmt"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/git"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/types"
)

// Resolve walks upward from start to the nearest .git and returns the
// binding stored against it, if any. A nil binding with a nil error
// means the directory is a git repo but has no binding yet.
func Resolve(ctx context.Context, st store.Store, start string) (*types.Binding, error) {
	gitDir, err := git.FindGitDir(start)
	if err != nil {
		return nil, ferr.Wrap(ferr.NotFound, err).WithRemedy("run inside a git repository")
	}
	b, err := st.GetBinding(ctx, gitDir)
	if err != nil {
		if kind, ok := ferr.KindOf(err); ok && kind == ferr.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("read binding: %w", err)
	}
	return b, nil
}

// Link writes a new binding for the git repo containing start and
// returns it. The caller is responsible for triggering the initial
// sync; Link only persists the binding record.
//
// A git directory that already has a binding (to any repo, including
// the same one) is rejected unless force is set, in which case the
// prior binding and its cached rows are torn down first through
// st.DeleteBinding, the same cascade Unlink uses —
// this is the "dedicated op" spec.md §4.3 requires before a re-link
// replaces an existing binding.
func Link(ctx context.Context, st store.Store, start string, forge types.ForgeKind, repo, tokenRef string, force bool) (*types.Binding, error) {
	gitDir, err := git.FindGitDir(start)
	if err != nil {
		return nil, ferr.Wrap(ferr.NotFound, err).WithRemedy("run inside a git repository")
	}

	existing, err := st.GetBinding(ctx, gitDir)
	if err != nil {
		if kind, ok := ferr.KindOf(err); !ok || kind != ferr.NotFound {
			return nil, fmt.Errorf("read binding: %w", err)
		}
	}
	if existing != nil {
		if !force {
			return nil, ferr.New(ferr.Conflict, fmt.Sprintf("this repo is already bound to %s/%s", existing.Forge, existing.Repo)).
				WithRemedy("run `fg unlink` first, or pass --force to replace it")
		}
		if err := st.DeleteBinding(ctx, gitDir); err != nil {
			return nil, fmt.Errorf("replace existing binding: %w", err)
		}
	}

	b := &types.Binding{
		GitDir:   gitDir,
		Forge:    forge,
		Repo:     repo,
		TokenRef: tokenRef,
		LinkedAt: time.Now(),
	}
	if err := st.PutBinding(ctx, b); err != nil {
		return nil, fmt.Errorf("write binding: %w", err)
	}
	return b, nil
}

// Unlink removes the binding for the git repo containing start along
// with every cached row belonging to it, leaving no
// orphan rows (spec.md §4.3).
func Unlink(ctx context.Context, st store.Store, start string) error {
	gitDir, err := git.FindGitDir(start)
	if err != nil {
		return ferr.Wrap(ferr.NotFound, err).WithRemedy("run inside a git repository")
	}

	if _, err := st.GetBinding(ctx, gitDir); err != nil {
		if kind, ok := ferr.KindOf(err); ok && kind == ferr.NotFound {
			return ferr.New(ferr.NotFound, "this repo has no binding").WithRemedy("run `fg link` first")
		}
		return fmt.Errorf("read binding: %w", err)
	}

	// DeleteBinding cascades to issues, pending ops, sync state, and
	// worktree-issue links for this binding at the store layer.
	return st.DeleteBinding(ctx, gitDir)
}

// List returns every binding known to the store, for `fg status` and
// the daemon's sync scheduler.
func List(ctx context.Context, st store.Store) ([]*types.Binding, error) {
	return st.ListBindings(ctx)
}
