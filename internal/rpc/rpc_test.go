package rpc

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type fakeHandler struct {
	syncedRepo  string
	reloaded    bool
	hintedRepo  string
	shutdownCh  chan struct{}
}

func (f *fakeHandler) Status(ctx context.Context) (StatusResponse, error) {
	return StatusResponse{Version: "test", PID: 123, Bindings: []BindingStatus{
		{Repo: "acme/widgets", Forge: "github"},
	}}, nil
}

func (f *fakeHandler) SyncNow(ctx context.Context, repo string) error {
	f.syncedRepo = repo
	return nil
}

func (f *fakeHandler) Reload(ctx context.Context) error {
	f.reloaded = true
	return nil
}

func (f *fakeHandler) EnqueueHint(ctx context.Context, repo string) error {
	f.hintedRepo = repo
	return nil
}

func (f *fakeHandler) Shutdown(ctx context.Context) error {
	if f.shutdownCh != nil {
		close(f.shutdownCh)
	}
	return nil
}

func startTestServer(t *testing.T, handler Handler) (string, func()) {
	t.Helper()
	socketPath := newTestSocketPath(t)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(socketPath, handler, slog.Default())

	ready := make(chan struct{})
	go func() {
		go func() {
			// give Serve a moment to bind before signalling ready
			time.Sleep(20 * time.Millisecond)
			close(ready)
		}()
		_ = srv.Serve(ctx)
	}()
	<-ready

	return socketPath, func() {
		cancel()
		_ = srv.Close()
	}
}

func TestStatusRoundTrip(t *testing.T) {
	handler := &fakeHandler{}
	socketPath, stop := startTestServer(t, handler)
	defer stop()

	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PID != 123 {
		t.Fatalf("PID = %d, want 123", status.PID)
	}
	if len(status.Bindings) != 1 || status.Bindings[0].Repo != "acme/widgets" {
		t.Fatalf("unexpected bindings: %+v", status.Bindings)
	}
}

func TestSyncNowAndReload(t *testing.T) {
	handler := &fakeHandler{}
	socketPath, stop := startTestServer(t, handler)
	defer stop()

	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.SyncNow("acme/widgets"); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if handler.syncedRepo != "acme/widgets" {
		t.Fatalf("syncedRepo = %q", handler.syncedRepo)
	}

	client2, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client2.Close()

	if err := client2.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !handler.reloaded {
		t.Fatalf("expected Reload to have been called")
	}
}

func TestTryDialNoSocket(t *testing.T) {
	client, err := TryDial("/tmp/fg-rpc-does-not-exist/daemon.sock", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("TryDial returned error, want nil: %v", err)
	}
	if client != nil {
		t.Fatalf("expected nil client when socket is absent")
	}
}

func TestUnknownOperation(t *testing.T) {
	handler := &fakeHandler{}
	socketPath, stop := startTestServer(t, handler)
	defer stop()

	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	_, err = client.execute("bogus", nil)
	if err == nil {
		t.Fatalf("expected an error for an unknown operation")
	}
}
