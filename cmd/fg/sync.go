package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgectl/fg/internal/binding"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "binding",
	Short:   "Trigger an immediate sync of the current repo and wait for it",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonClient == nil {
			exitWith(5, "daemon unreachable (run `fg daemon start`)")
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		b, err := binding.Resolve(rootCtx, st, cwd)
		if err != nil {
			return err
		}
		if b == nil {
			exitWith(2, "this repo has no binding (run `fg link` first)")
		}

		if err := daemonClient.SyncNow(b.Repo); err != nil {
			exitWith(5, "%s", err)
		}

		if jsonOutput {
			emitJSON(map[string]string{"status": "synced", "repo": b.Repo})
		} else {
			fmt.Println("synced")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
