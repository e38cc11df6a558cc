package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgectl/fg/internal/git"
)

var currentQuiet bool

var currentCmd = &cobra.Command{
	Use:     "current",
	GroupID: "issues",
	Short:   "Print the issue key bound to the current git directory",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		gitDir, err := git.FindGitDir(cwd)
		if err != nil {
			if currentQuiet {
				os.Exit(6)
			}
			exitWith(6, "not inside a git repository")
		}

		w, err := git.CurrentIssue(rootCtx, st, gitDir)
		if err != nil || w == nil {
			if currentQuiet {
				os.Exit(6)
			}
			exitWith(6, "no issue bound to this worktree")
		}

		if currentQuiet {
			return nil
		}
		if jsonOutput {
			emitJSON(map[string]string{"key": w.IssueKey, "binding": w.BindingID})
		} else {
			fmt.Println(w.IssueKey)
		}
		return nil
	},
}

func init() {
	currentCmd.Flags().BoolVarP(&currentQuiet, "quiet", "q", false, "exit 0/6 silently, print nothing")
	rootCmd.AddCommand(currentCmd)
}
