package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgectl/fg/internal/keyring"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/store/sqlite"
	"github.com/forgectl/fg/internal/sync"
	"github.com/forgectl/fg/internal/types"
)

func setupDaemonStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestDaemon(t *testing.T, st store.Store) *Daemon {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		CacheDir:   dir,
		SocketPath: filepath.Join(dir, "daemon.sock"),
		LockPath:   filepath.Join(dir, "daemon.pid"),
		Sync:       sync.DefaultConfig(),
	}
	keys := keyring.NewFileStore(filepath.Join(dir, "creds.json"))
	return New(cfg, st, keys)
}

func TestStatusReportsBindings(t *testing.T) {
	ctx := context.Background()
	st := setupDaemonStore(t)
	b := &types.Binding{GitDir: "/repo", Forge: types.ForgeGitHub, Repo: "acme/widgets"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	d := newTestDaemon(t, st)
	d.startedAt = time.Now()

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Bindings) != 1 || status.Bindings[0].Repo != "acme/widgets" {
		t.Fatalf("status = %+v", status)
	}
}

func TestReloadPicksUpNewCredential(t *testing.T) {
	ctx := context.Background()
	st := setupDaemonStore(t)
	d := newTestDaemon(t, st)

	if len(d.adapters) != 0 {
		t.Fatalf("expected no adapters before any binding exists, got %d", len(d.adapters))
	}

	b := &types.Binding{GitDir: "/repo", Forge: types.ForgeGitHub, Repo: "acme/widgets", TokenRef: "default"}
	if err := st.PutBinding(ctx, b); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}
	if err := d.keys.Set(ctx, string(types.ForgeGitHub), "default", "ghp_test"); err != nil {
		t.Fatalf("Set credential: %v", err)
	}

	if err := d.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := d.adapters[types.ForgeGitHub]; !ok {
		t.Fatalf("expected a github adapter to be built after reload, got %+v", d.adapters)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	st := setupDaemonStore(t)
	d := newTestDaemon(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestShutdownStopsRun(t *testing.T) {
	st := setupDaemonStore(t)
	d := newTestDaemon(t, st)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after Shutdown")
	}
}
