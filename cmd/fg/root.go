// Command fg is the offline-first CLI for issue trackers: it reads
// and writes through a local SQLite cache kept in sync with GitHub or
// Linear by a background daemon (SPEC_FULL.md §1).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgectl/fg/internal/config"
	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/keyring"
	"github.com/forgectl/fg/internal/rpc"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/store/sqlite"
)

// Version is reported by `fg --version` and kept in sync with the
// daemon's own Version so a `fg status` mismatch is visible.
const Version = "0.1.0"

var (
	jsonOutput bool
	rootCtx    = context.Background()

	// daemonClient is non-nil when a daemon answered on the control
	// socket at startup. Reads and issue mutations never go through it
	// (they use the store and the write path directly); it carries the
	// daemon-administration requests (status, sync, reload, shutdown)
	// and the resync nudge sent after a mutation.
	daemonClient *rpc.Client

	cacheDir string
	st       store.Store
	keys     keyring.Store
)

var rootCmd = &cobra.Command{
	Use:           "fg",
	Short:         "Offline-first CLI for GitHub and Linear issues",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "__daemon-run" {
			return nil
		}
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "binding", Title: "Binding:"},
		&cobra.Group{ID: "issues", Title: "Issues:"},
		&cobra.Group{ID: "daemon", Title: "Daemon:"},
	)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON")
}

func setup(cmd *cobra.Command) error {
	if err := config.Initialize(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if config.GetBool("json") {
		jsonOutput = true
	}

	dir, err := config.CacheDir()
	if err != nil {
		return fmt.Errorf("resolve cache dir: %w", err)
	}
	cacheDir = dir
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	keys = keyring.NewFileStore(filepath.Join(cacheDir, "credentials.json"))

	client, err := rpc.TryDial(rpc.SocketPath(cacheDir), 2*time.Second)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	daemonClient = client

	// The store is opened directly even when a daemon is running: every
	// read goes straight to the cache (WAL mode lets this connection
	// and the daemon's writer coexist), and commands like `sync` need
	// it to resolve the current binding before asking the daemon to
	// act on it.
	if needsStore(cmd) {
		s, err := sqlite.Open(rootCtx, filepath.Join(cacheDir, "cache.db"))
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		st = s
	}
	return nil
}

// needsStore reports whether cmd reads or writes the cache directly,
// whether or not a daemon is reachable. `daemon` subcommands manage the
// process itself and never touch the store from the CLI side.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.GroupID == "daemon" {
			return false
		}
	}
	return true
}

func lockPath() string {
	return filepath.Join(cacheDir, "daemon.pid")
}

func teardown() {
	if daemonClient != nil {
		_ = daemonClient.Close()
	}
	if st != nil {
		_ = st.Close()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

// fatal renders err per spec.md §7 (plain text, or {kind, message,
// binding?, op_id?} under --json) and exits with the code matching
// its ferr.Kind, or 1 for an error outside the taxonomy.
func fatal(err error) {
	os.Exit(renderError(err))
}

func renderError(err error) int {
	kind, ok := ferr.KindOf(err)
	if !ok {
		if jsonOutput {
			emitJSON(map[string]string{"message": err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return 1
	}

	if jsonOutput {
		payload := map[string]interface{}{"kind": string(kind), "message": err.Error()}
		var fe *ferr.Error
		if ok := asFerr(err, &fe); ok {
			if fe.Binding != "" {
				payload["binding"] = fe.Binding
			}
			if fe.OpID != 0 {
				payload["op_id"] = fe.OpID
			}
			if fe.Remedy != "" {
				payload["remedy"] = fe.Remedy
			}
		}
		emitJSON(payload)
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}

	return exitCodeForKind(kind)
}

func asFerr(err error, out **ferr.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if fe, ok := e.(*ferr.Error); ok {
			*out = fe
			return true
		}
		u, ok := e.(unwrapper)
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// exitCodeForKind maps the error taxonomy onto the exit codes named
// in spec.md §6's command table.
func exitCodeForKind(kind ferr.Kind) int {
	switch kind {
	case ferr.NotFound:
		return 6
	case ferr.Authentication:
		return 3
	case ferr.Conflict:
		return 4
	case ferr.Connectivity, ferr.StoreBusy, ferr.Protocol:
		return 5
	case ferr.StoreCorrupt:
		return 5
	default:
		return 1
	}
}

func emitJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func exitWith(code int, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	if jsonOutput {
		emitJSON(map[string]string{"message": msg})
	} else {
		fmt.Fprintln(os.Stderr, "error:", msg)
	}
	os.Exit(code)
}
