package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgectl/fg/internal/binding"
	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/forge/github"
	"github.com/forgectl/fg/internal/forge/linear"
	"github.com/forgectl/fg/internal/types"
	"github.com/forgectl/fg/internal/writepath"
)

var issueCmd = &cobra.Command{
	Use:     "issue",
	GroupID: "issues",
	Short:   "Read and mutate issues against the current binding",
}

func init() {
	rootCmd.AddCommand(issueCmd)
}

// currentBinding resolves the binding for the working directory or
// exits with the not-linked exit code, the precondition every issue
// subcommand shares.
func currentBinding() *types.Binding {
	cwd, err := os.Getwd()
	if err != nil {
		exitWith(1, "%s", err)
	}
	b, err := binding.Resolve(rootCtx, st, cwd)
	if err != nil {
		exitWith(2, "%s", err)
	}
	if b == nil {
		exitWith(2, "this repo has no binding (run `fg link` first)")
	}
	return b
}

var (
	listState    string
	listLabel    string
	listAssignee string
)

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached issues for the current binding",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		issues, err := st.ListIssues(rootCtx, b.ID(), types.IssueFilter{
			State:    listState,
			Label:    listLabel,
			Assignee: listAssignee,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			emitJSON(issues)
			return nil
		}
		if len(issues) == 0 {
			fmt.Println("no issues")
			return nil
		}
		for _, is := range issues {
			fmt.Printf("%s\t%-7s\t%s\n", is.Key, is.State, is.Title)
		}
		return nil
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show one cached issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		is, err := st.GetIssue(rootCtx, b.ID(), args[0])
		if err != nil {
			if k, ok := ferr.KindOf(err); ok && k == ferr.NotFound {
				exitWith(6, "issue %s not found", args[0])
			}
			return err
		}

		if jsonOutput {
			emitJSON(is)
			return nil
		}
		fmt.Printf("%s %s (%s)\n\n%s\n", is.Key, is.Title, is.State, is.Body)
		if len(is.Labels) > 0 {
			names := make([]string, len(is.Labels))
			for i, l := range is.Labels {
				names[i] = l.Name
			}
			fmt.Println("labels:", names)
		}
		if len(is.Assignees) > 0 {
			fmt.Println("assignees:", is.Assignees)
		}
		return nil
	},
}

var (
	createTitle  string
	createBody   string
	createLabels []string
)

var issueCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an issue, directly or queued if offline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if createTitle == "" {
			exitWith(1, "--title is required")
		}
		b := currentBinding()
		path := writePathFor(b)

		issue, queued, err := path.Create(rootCtx, b, forge.CreateRequest{
			Title: createTitle, Body: createBody, Labels: createLabels,
		})
		if err != nil {
			return mutationErr(err)
		}
		return reportMutation(queued, issue)
	},
}

var issueCommentCmd = &cobra.Command{
	Use:   "comment <key> <body>",
	Short: "Comment on an issue, directly or queued if offline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		queued, err := writePathFor(b).Comment(rootCtx, b, args[0], args[1])
		if err != nil {
			return mutationErr(err)
		}
		return reportMutation(queued, nil)
	},
}

var issueCloseCmd = &cobra.Command{
	Use:   "close <key>",
	Short: "Close an issue, directly or queued if offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		queued, err := writePathFor(b).SetState(rootCtx, b, args[0], types.StateClosed)
		if err != nil {
			return mutationErr(err)
		}
		return reportMutation(queued, nil)
	},
}

var issueReopenCmd = &cobra.Command{
	Use:   "reopen <key>",
	Short: "Reopen an issue, directly or queued if offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		queued, err := writePathFor(b).SetState(rootCtx, b, args[0], types.StateOpen)
		if err != nil {
			return mutationErr(err)
		}
		return reportMutation(queued, nil)
	},
}

var labelRemove bool

var issueLabelCmd = &cobra.Command{
	Use:   "label <key> <name>",
	Short: "Add (or --remove) a label on an issue, directly or queued if offline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		queued, err := writePathFor(b).Label(rootCtx, b, args[0], args[1], !labelRemove)
		if err != nil {
			return mutationErr(err)
		}
		return reportMutation(queued, nil)
	},
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign <key> <handle>",
	Short: "Assign an issue, directly or queued if offline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBinding()
		queued, err := writePathFor(b).Assign(rootCtx, b, args[0], args[1])
		if err != nil {
			return mutationErr(err)
		}
		return reportMutation(queued, nil)
	},
}

func init() {
	issueListCmd.Flags().StringVar(&listState, "state", "", "open, closed, or empty for all")
	issueListCmd.Flags().StringVar(&listLabel, "label", "", "only issues carrying this label")
	issueListCmd.Flags().StringVar(&listAssignee, "assignee", "", "only issues assigned to this handle")

	issueCreateCmd.Flags().StringVar(&createTitle, "title", "", "issue title (required)")
	issueCreateCmd.Flags().StringVar(&createBody, "body", "", "issue body")
	issueCreateCmd.Flags().StringSliceVar(&createLabels, "label", nil, "labels to apply at creation")

	issueLabelCmd.Flags().BoolVar(&labelRemove, "remove", false, "remove the label instead of adding it")

	issueCmd.AddCommand(issueListCmd, issueShowCmd, issueCreateCmd, issueCommentCmd,
		issueCloseCmd, issueReopenCmd, issueLabelCmd, issueAssignCmd)
}

func mutationErr(err error) error {
	if k, ok := ferr.KindOf(err); ok && k == ferr.Authentication {
		exitWith(3, "%s", err)
	}
	return err
}

// reportMutation renders a direct result or a queued acknowledgement
// per spec.md §6 (exit 0 direct, exit 7 queued).
func reportMutation(queued bool, issue *types.Issue) error {
	if jsonOutput {
		payload := map[string]interface{}{"queued": queued}
		if issue != nil {
			payload["issue"] = issue
		}
		emitJSON(payload)
	} else if queued {
		fmt.Println("queued (offline); will replay once the daemon reconnects")
	} else if issue != nil {
		fmt.Printf("created %s\n", issue.Key)
	} else {
		fmt.Println("ok")
	}
	if queued {
		os.Exit(7)
	}
	return nil
}

// writePathFor builds a one-shot writepath.Path scoped to a single
// binding's adapter: the CLI process doesn't keep one resident, it
// attempts the mutation itself and lets the store's pending-op queue
// (shared with the daemon over the same WAL-mode file) hold it if the
// attempt can't complete.
func writePathFor(b *types.Binding) *writepath.Path {
	token, err := keys.Get(rootCtx, string(b.Forge), b.TokenRef)
	if err != nil {
		exitWith(3, "no stored credential for %s: %s", b.ID(), err)
	}

	var adapter forge.Adapter
	switch b.Forge {
	case types.ForgeGitHub:
		adapter = github.NewAdapter(token)
	case types.ForgeLinear:
		adapter = linear.NewAdapter(token, b.Repo)
	default:
		exitWith(1, "unknown forge %q", b.Forge)
	}

	adapters := map[types.ForgeKind]forge.Adapter{b.Forge: adapter}
	return writepath.New(st, adapters, daemonResync{})
}

// daemonResync nudges a reachable daemon to resync the binding right
// after a direct mutation succeeds, so the cache row catches up
// without waiting for the next scheduled tick. Without a daemon
// running, the cache simply reflects the mutation at the next `fg
// sync` or `fg daemon start`.
type daemonResync struct{}

func (daemonResync) SyncNow(ctx context.Context, b *types.Binding) error {
	if daemonClient == nil {
		return nil
	}
	return daemonClient.SyncNow(b.Repo)
}
