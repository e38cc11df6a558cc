package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/forgectl/fg/internal/lockfile"
	"github.com/forgectl/fg/internal/rpc"
)

const daemonReadyTimeout = 5 * time.Second

// tryAutoStartDaemon spawns the daemon as a detached background
// process and waits for its control socket to answer, mirroring the
// spawn-then-poll pattern a resident-daemon CLI needs regardless of
// which forge it talks to: a short-lived invocation cannot block on
// the daemon's own lifetime, so it launches it and polls the one
// externally observable signal that it's alive (the socket).
func tryAutoStartDaemon() error {
	socketPath := rpc.SocketPath(cacheDir)

	if client, err := rpc.TryDial(socketPath, 500*time.Millisecond); err == nil && client != nil {
		_ = client.Close()
		return nil
	}

	if pid, err := lockfile.ReadOwnerPID(lockPath()); err == nil && processAlive(pid) {
		return waitForSocket(socketPath)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}

	cmd := exec.Command(exe, "__daemon-run")
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdin = devNull
		cmd.Stdout = devNull
		cmd.Stderr = devNull
		defer devNull.Close()
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon process: %w", err)
	}
	go func() { _ = cmd.Wait() }()

	return waitForSocket(socketPath)
}

func waitForSocket(socketPath string) error {
	deadline := time.Now().Add(daemonReadyTimeout)
	for time.Now().Before(deadline) {
		client, err := rpc.TryDial(socketPath, 200*time.Millisecond)
		if err == nil && client != nil {
			_ = client.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become ready within %s", daemonReadyTimeout)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
