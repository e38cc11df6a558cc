package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgectl/fg/internal/binding"
	"github.com/forgectl/fg/internal/ferr"
)

var unlinkCmd = &cobra.Command{
	Use:     "unlink",
	GroupID: "binding",
	Short:   "Remove the binding for the current git repo",
	Long: `Removes the binding for the current git directory along with every
cached issue and pending write queued for it. The remote repo is
untouched; a later link of the same repo starts a fresh full sync.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		if err := binding.Unlink(rootCtx, st, cwd); err != nil {
			if k, ok := ferr.KindOf(err); ok && k == ferr.NotFound {
				exitWith(2, "%s", err)
			}
			return err
		}

		if daemonClient != nil {
			_ = daemonClient.Reload()
		}

		if jsonOutput {
			emitJSON(map[string]string{"status": "unlinked"})
		} else {
			fmt.Println("unlinked")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unlinkCmd)
}
