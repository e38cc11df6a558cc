package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgectl/fg/internal/binding"
	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/forge/github"
	"github.com/forgectl/fg/internal/forge/linear"
	"github.com/forgectl/fg/internal/types"
)

var (
	linkRepo  string
	linkTeam  string
	linkToken string
	linkForce bool
)

var linkCmd = &cobra.Command{
	Use:     "link <github|linear>",
	GroupID: "binding",
	Short:   "Bind the current git repo to a forge repo and start syncing",
	Long: `Binds the current git directory to a remote GitHub repo or Linear
team, validates the credential against the forge, writes the binding,
and kicks off an initial sync.

The credential is read from --token, falling back to the GITHUB_TOKEN
or LINEAR_API_KEY environment variable. Probing a system credential
helper and interactive OAuth are not implemented; link always takes
the token tier directly.

Linking a repo that is already bound fails unless --force is given, in
which case the prior binding and its cached issues are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseForgeKind(args[0])
		if err != nil {
			exitWith(2, "%s", err)
		}

		token := linkToken
		if token == "" {
			token = os.Getenv(envVarFor(kind))
		}
		if token == "" {
			exitWith(3, "no credential found; pass --token or set %s", envVarFor(kind))
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		repo := linkRepo
		if repo == "" {
			repo, err = inferRepo(cwd, kind)
			if err != nil {
				exitWith(2, "%s", err)
			}
		}

		adapter, err := buildProbeAdapter(kind, token, linkTeam)
		if err != nil {
			exitWith(3, "%s", err)
		}
		if _, err := adapter.AuthProbe(rootCtx, repo); err != nil {
			exitWith(3, "auth probe failed: %s", err)
		}

		tokenRef := "default"
		if err := keys.Set(rootCtx, string(kind), tokenRef, token); err != nil {
			return fmt.Errorf("store credential: %w", err)
		}

		b, err := binding.Link(rootCtx, st, cwd, kind, repo, tokenRef, linkForce)
		if err != nil {
			if k, ok := ferr.KindOf(err); ok && k == ferr.Conflict {
				exitWith(4, "%s", err)
			}
			return err
		}

		if daemonClient != nil {
			_ = daemonClient.Reload()
			_ = daemonClient.SyncNow(b.Repo)
		} else if err := tryAutoStartDaemon(); err != nil {
			fmt.Fprintln(os.Stderr, "note: daemon did not start automatically:", err)
			fmt.Fprintln(os.Stderr, "run `fg daemon start` to begin syncing")
		}

		if jsonOutput {
			emitJSON(map[string]string{"forge": string(kind), "repo": repo, "status": "linked"})
		} else {
			fmt.Printf("linked %s/%s (%s)\n", kind, repo, b.GitDir)
		}
		return nil
	},
}

func init() {
	linkCmd.Flags().StringVar(&linkRepo, "repo", "", "remote repo or team key (default: inferred from git remote)")
	linkCmd.Flags().StringVar(&linkTeam, "team", "", "Linear team ID, when it differs from --repo")
	linkCmd.Flags().StringVar(&linkToken, "token", "", "personal access token (else read from env)")
	linkCmd.Flags().BoolVar(&linkForce, "force", false, "replace an existing binding for this repo instead of failing")
	rootCmd.AddCommand(linkCmd)
}

func parseForgeKind(s string) (types.ForgeKind, error) {
	switch strings.ToLower(s) {
	case "github", "gh":
		return types.ForgeGitHub, nil
	case "linear":
		return types.ForgeLinear, nil
	default:
		return "", fmt.Errorf("unknown forge %q (want github or linear)", s)
	}
}

func envVarFor(kind types.ForgeKind) string {
	if kind == types.ForgeLinear {
		return "LINEAR_API_KEY"
	}
	return "GITHUB_TOKEN"
}

func buildProbeAdapter(kind types.ForgeKind, token, team string) (forge.Adapter, error) {
	switch kind {
	case types.ForgeGitHub:
		return github.NewAdapter(token), nil
	case types.ForgeLinear:
		return linear.NewAdapter(token, team), nil
	default:
		return nil, fmt.Errorf("unknown forge %q", kind)
	}
}

// inferRepo derives the bound repo identifier from the git remote
// named "origin" when --repo is not given. GitHub resolves to
// "owner/name" from the remote URL; Linear has no such convention, so
// it always requires --repo.
func inferRepo(gitDir string, kind types.ForgeKind) (string, error) {
	if kind == types.ForgeLinear {
		return "", fmt.Errorf("--repo (Linear team key) is required for linear")
	}
	url, err := originURL(gitDir)
	if err != nil {
		return "", fmt.Errorf("no git repository here and no --repo given: %w", err)
	}
	owner, name, ok := parseGitHubRemote(url)
	if !ok {
		return "", fmt.Errorf("could not parse owner/repo from remote %q; pass --repo", url)
	}
	return owner + "/" + name, nil
}
