package main

import (
	"os/exec"
	"regexp"
	"strings"
)

// originURL shells out to `git remote get-url origin` rather than
// parsing .git/config by hand, the same way the teacher's sync
// tooling defers to the git binary for anything git already knows
// how to answer.
func originURL(gitDir string) (string, error) {
	cmd := exec.Command("git", "-C", gitDir, "remote", "get-url", "origin")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

var githubRemotePattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.]+?)(\.git)?$`)

// parseGitHubRemote extracts owner/name from either SSH
// (git@github.com:owner/name.git) or HTTPS
// (https://github.com/owner/name.git) remote URL shapes.
func parseGitHubRemote(url string) (owner, name string, ok bool) {
	m := githubRemotePattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
