package rpc

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestSocketPath returns a socket path short enough to stay under
// AF_UNIX path limits on darwin, preferring /tmp over t.TempDir()
// (which on macOS lives deep under /var/folders).
func newTestSocketPath(t *testing.T) string {
	t.Helper()

	d, err := os.MkdirTemp("/tmp", "fg-rpc-")
	if err == nil {
		t.Cleanup(func() { _ = os.RemoveAll(d) })
		return filepath.Join(d, "daemon.sock")
	}

	return filepath.Join(t.TempDir(), "daemon.sock")
}
