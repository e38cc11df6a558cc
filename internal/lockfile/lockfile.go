// Package lockfile enforces the "exactly one daemon" invariant
// (SPEC_FULL.md §7 "Processes") with a pid-file lock adjacent to the
// store, using gofrs/flock for the underlying OS-level advisory lock.
package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// Lock guards a single pid-file. The daemon holds it for its whole
// lifetime; CLI processes use TryDial's socket probe (see
// internal/rpc) rather than taking it themselves.
type Lock struct {
	flock *flock.Flock
	path  string
}

// New returns an unlocked Lock for the pid-file at path.
func New(path string) *Lock {
	return &Lock{flock: flock.New(path), path: path}
}

// TryAcquire attempts a non-blocking exclusive lock and, on success,
// writes the current pid into the file. ok is false (with a nil
// error) when another process already holds the lock -- the normal
// "a daemon is already running" case, not a failure.
func (l *Lock) TryAcquire() (ok bool, err error) {
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !locked {
		return false, nil
	}

	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		l.flock.Unlock()
		return false, fmt.Errorf("write pid to %s: %w", l.path, err)
	}
	return true, nil
}

// Release unlocks and removes the pid-file. Safe to call on an
// unlocked Lock.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

// ReadOwnerPID reads the pid recorded in an existing pid-file, used by
// the CLI's daemon auto-start to check whether a live process holds
// the lock without itself attempting to acquire it.
func ReadOwnerPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// WaitReleased polls until the lock at path is free or the timeout
// elapses, used by `daemon stop` to confirm shutdown before returning.
func WaitReleased(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	probe := flock.New(path)
	for time.Now().Before(deadline) {
		locked, err := probe.TryLock()
		if err == nil && locked {
			probe.Unlock()
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
