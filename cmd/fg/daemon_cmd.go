package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgectl/fg/internal/daemon"
	"github.com/forgectl/fg/internal/daemon/service"
	"github.com/forgectl/fg/internal/lockfile"
	"github.com/forgectl/fg/internal/logging"
	"github.com/forgectl/fg/internal/rpc"
	"github.com/forgectl/fg/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "daemon",
	Short:   "Manage the background sync daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background if it isn't already running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if client, err := rpc.TryDial(rpc.SocketPath(cacheDir), 500*time.Millisecond); err == nil && client != nil {
			_ = client.Close()
			fmt.Println("daemon already running")
			return nil
		}
		if err := tryAutoStartDaemon(); err != nil {
			exitWith(5, "%s", err)
		}
		fmt.Println("daemon started")
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running daemon to shut down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonClient == nil {
			exitWith(5, "daemon unreachable")
		}
		if err := daemonClient.Shutdown(); err != nil {
			exitWith(5, "%s", err)
		}
		if !lockfile.WaitReleased(lockPath(), 5*time.Second) {
			exitWith(5, "daemon did not stop within 5s")
		}
		fmt.Println("daemon stopped")
		return nil
	},
}

var daemonStatusFormat string

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonClient == nil {
			exitWith(5, "daemon not running")
		}
		resp, err := daemonClient.Status()
		if err != nil {
			exitWith(5, "%s", err)
		}
		switch {
		case jsonOutput || daemonStatusFormat == "json":
			emitJSON(resp)
		case daemonStatusFormat == "yaml":
			out, err := yaml.Marshal(resp)
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			os.Stdout.Write(out)
		default:
			fmt.Printf("running, pid %d, version %s, %d binding(s)\n", resp.PID, resp.Version, len(resp.Bindings))
		}
		return nil
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop and restart the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonClient != nil {
			if err := daemonClient.Shutdown(); err != nil {
				exitWith(5, "%s", err)
			}
			lockfile.WaitReleased(lockPath(), 5*time.Second)
		}
		if err := tryAutoStartDaemon(); err != nil {
			exitWith(5, "%s", err)
		}
		fmt.Println("daemon restarted")
		return nil
	},
}

var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the daemon as a user service that starts at login and survives reboot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Install(serviceConfig()); err != nil {
			exitWith(5, "%s", err)
		}
		fmt.Println("daemon registered; it will start automatically at login")
		return nil
	},
}

var daemonUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the daemon's user-service registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Uninstall(serviceConfig()); err != nil {
			exitWith(5, "%s", err)
		}
		fmt.Println("daemon service registration removed")
		return nil
	},
}

// serviceConfig resolves the fg binary's own path so the installed
// service re-execs it into __daemon-run, the same hidden entrypoint
// tryAutoStartDaemon spawns.
func serviceConfig() service.Config {
	exe, err := os.Executable()
	if err != nil {
		exitWith(1, "resolve own executable: %s", err)
	}
	label := "fg-daemon"
	if runtime.GOOS == "darwin" {
		label = "com.forgectl.fg"
	}
	return service.Config{Label: label, ExecPath: exe, Args: []string{"__daemon-run"}}
}

// daemonRunCmd is the hidden entrypoint a spawned background process
// execs into; it is never meant to be typed by a user directly.
var daemonRunCmd = &cobra.Command{
	Use:    "__daemon-run",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(cmd); err != nil {
			return err
		}

		opts := logging.DefaultOptions(cacheDir + "/daemon.log")
		logger := logging.New(opts)

		cfg := daemon.Config{
			CacheDir:    cacheDir,
			SocketPath:  rpc.SocketPath(cacheDir),
			LockPath:    lockPath(),
			IdleTimeout: 30 * time.Minute,
			Sync:        sync.DefaultConfig(),
			Logger:      logger,
		}
		d := daemon.New(cfg, st, keys)
		return d.Run(rootCtx)
	},
}

func init() {
	daemonStatusCmd.Flags().StringVar(&daemonStatusFormat, "format", "text", "output format: text, json, or yaml")
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonRestartCmd, daemonInstallCmd, daemonUninstallCmd)
	rootCmd.AddCommand(daemonCmd, daemonRunCmd)
}
