package github

import (
	"strconv"

	"github.com/forgectl/fg/internal/types"
)

// toIssue translates a GitHub-native issue into the normalized
// record. The numeric issue number becomes both the display Key and,
// stringified, the NativeID -- GitHub's identity is not opaque the
// way Linear's is, but the adapter still needs a NativeID for the
// Adapter contract's mutation calls.
func toIssue(repo string, gi *Issue) *types.Issue {
	labels := make([]types.Label, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		label := types.Label{Name: l.Name}
		if l.Color != "" {
			color := l.Color
			label.Color = &color
		}
		labels = append(labels, label)
	}

	assignees := make([]string, 0, len(gi.Assignees))
	for _, u := range gi.Assignees {
		assignees = append(assignees, u.Login)
	}

	state := types.StateOpen
	if gi.State == "closed" {
		state = types.StateClosed
	}

	return &types.Issue{
		Key:       strconv.Itoa(gi.Number),
		NativeID:  strconv.Itoa(gi.Number),
		Title:     gi.Title,
		Body:      gi.Body,
		State:     state,
		Author:    gi.User.Login,
		Labels:    labels,
		Assignees: assignees,
		CreatedAt: gi.CreatedAt,
		UpdatedAt: gi.UpdatedAt,
		Forge:     types.ForgeGitHub,
	}
}

// isPullRequest reports whether the issue record is actually a pull
// request (GitHub's REST API returns both through the same endpoint).
func isPullRequest(gi *Issue) bool {
	return gi.PullRequest != nil
}
