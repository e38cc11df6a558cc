package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "binding",
	Short:   "Show sync age, pending writes, and reauth flags per binding",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonClient == nil {
			exitWith(5, "daemon unreachable (run `fg daemon start`)")
		}

		resp, err := daemonClient.Status()
		if err != nil {
			exitWith(5, "%s", err)
		}

		if jsonOutput {
			emitJSON(resp)
			return nil
		}

		uptime := time.Duration(resp.UptimeSeconds * float64(time.Second))
		fmt.Printf("fg daemon %s, pid %d, up %s\n", resp.Version, resp.PID, humanize.RelTime(time.Now().Add(-uptime), time.Now(), "", "ago"))

		if len(resp.Bindings) == 0 {
			fmt.Println("no bindings")
			return nil
		}
		for _, b := range resp.Bindings {
			age := "never synced"
			if b.LastSyncAt != "" {
				if t, err := time.Parse(time.RFC3339, b.LastSyncAt); err == nil {
					age = "synced " + humanize.RelTime(t, time.Now(), "ago", "from now")
				} else {
					age = "synced " + b.LastSyncAt
				}
			}
			line := fmt.Sprintf("%s (%s) — %s, %d pending", b.Repo, b.Forge, age, b.PendingWrites)
			if b.LastSyncError != "" {
				line += fmt.Sprintf(", last error: %s", b.LastSyncError)
			}
			fmt.Println(line)
			for _, notice := range b.Notices {
				fmt.Printf("  ! %s\n", notice)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
