package github

import (
	"testing"
	"time"

	"github.com/forgectl/fg/internal/types"
)

func TestToIssueOpen(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	gi := &Issue{
		Number:    42,
		Title:     "Fix crash",
		Body:      "steps to reproduce",
		State:     "open",
		User:      User{Login: "alice"},
		Labels:    []Label{{Name: "bug", Color: "ff0000"}},
		Assignees: []User{{Login: "bob"}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	issue := toIssue("acme/widgets", gi)
	if issue.Key != "42" || issue.NativeID != "42" {
		t.Fatalf("got key=%s nativeID=%s", issue.Key, issue.NativeID)
	}
	if issue.State != types.StateOpen {
		t.Fatalf("got state %s, want open", issue.State)
	}
	if issue.Author != "alice" {
		t.Fatalf("got author %s, want alice", issue.Author)
	}
	if !issue.HasLabel("bug") || issue.Labels[0].Color == nil || *issue.Labels[0].Color != "ff0000" {
		t.Fatalf("got labels %+v", issue.Labels)
	}
	if !issue.HasAssignee("bob") {
		t.Fatalf("got assignees %+v", issue.Assignees)
	}
}

func TestToIssueClosed(t *testing.T) {
	gi := &Issue{Number: 7, State: "closed"}
	issue := toIssue("acme/widgets", gi)
	if issue.State != types.StateClosed {
		t.Fatalf("got state %s, want closed", issue.State)
	}
}

func TestIsPullRequest(t *testing.T) {
	if isPullRequest(&Issue{}) {
		t.Fatalf("expected a bare issue to not be a pull request")
	}
	if !isPullRequest(&Issue{PullRequest: map[string]interface{}{"url": "x"}}) {
		t.Fatalf("expected a PullRequestLinks-bearing record to be a pull request")
	}
}
