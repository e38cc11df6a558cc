package lockfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTryAcquireExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	first := New(path)
	ok, err := first.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("first TryAcquire: ok=%v err=%v", ok, err)
	}
	defer first.Release()

	second := New(path)
	ok, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("second TryAcquire: %v", err)
	}
	if ok {
		t.Fatalf("expected second lock attempt to fail while the first holds it")
	}
}

func TestReleaseThenReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	l := New(path)
	if ok, err := l.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected pid-file removed after Release, stat err=%v", err)
	}

	l2 := New(path)
	if ok, err := l2.TryAcquire(); err != nil || !ok {
		t.Fatalf("reacquire after release: ok=%v err=%v", ok, err)
	}
	l2.Release()
}

func TestReadOwnerPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	l := New(path)
	if ok, err := l.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
	}
	defer l.Release()

	pid, err := ReadOwnerPID(path)
	if err != nil {
		t.Fatalf("ReadOwnerPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("got pid %d, want %d", pid, os.Getpid())
	}
}

func TestWaitReleasedTimesOutWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	l := New(path)
	if ok, err := l.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
	}
	defer l.Release()

	if WaitReleased(path, 100*time.Millisecond) {
		t.Fatalf("expected WaitReleased to time out while the lock is held")
	}
}
