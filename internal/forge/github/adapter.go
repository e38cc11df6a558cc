package github

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/types"
)

// Adapter implements forge.Adapter against the GitHub REST API. repo
// is "owner/name".
type Adapter struct {
	client  *Client
	limiter *forge.Limiter
}

var _ forge.Adapter = (*Adapter)(nil)

func NewAdapter(token string) *Adapter {
	return &Adapter{client: NewClient(token), limiter: forge.NewLimiter(8)}
}

func (a *Adapter) Kind() types.ForgeKind { return types.ForgeGitHub }

func (a *Adapter) AuthProbe(ctx context.Context, repo string) (forge.Identity, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return forge.Identity{}, err
	}
	login, err := a.client.AuthenticatedUser(ctx)
	if err != nil {
		if err == errUnauthorized {
			return forge.Identity{}, err
		}
		return forge.Identity{}, ferr.Wrap(ferr.Connectivity, err)
	}
	return forge.Identity{Handle: login, Forge: types.ForgeGitHub}, nil
}

// githubSeq is the lazy sequence ListIssues returns: an open-issues
// pass followed by a closed-since pass, each paginated via GitHub's
// Link header.
type githubSeq struct {
	adapter *Adapter
	repo    string
	since   string

	phase int // 0 = open, 1 = closed-since, 2 = exhausted
	next  string
}

func (a *Adapter) ListIssues(ctx context.Context, repo, sinceCursor string) forge.IssueSeq {
	return &githubSeq{adapter: a, repo: repo, since: sinceCursor}
}

func (s *githubSeq) Next(ctx context.Context) ([]*types.Issue, bool, error) {
	if s.phase == 2 {
		return nil, true, nil
	}
	if err := s.adapter.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	state := "open"
	var since time.Time
	if s.phase == 1 {
		state = "closed"
		if s.since != "" {
			if t, err := time.Parse(time.RFC3339, s.since); err == nil {
				since = t
			}
		}
	}

	raw, next, budget, err := s.adapter.client.ListIssuesPage(ctx, s.repo, state, since, s.next)
	if err != nil {
		if err == errUnauthorized {
			return nil, false, err
		}
		return nil, false, ferr.Wrap(ferr.Connectivity, err)
	}
	s.adapter.limiter.Observe(budget)

	issues := make([]*types.Issue, 0, len(raw))
	for i := range raw {
		if isPullRequest(&raw[i]) {
			continue
		}
		issues = append(issues, toIssue(s.repo, &raw[i]))
	}

	if next != "" {
		s.next = next
		return issues, false, nil
	}

	s.next = ""
	s.phase++
	return issues, false, nil
}

func (a *Adapter) GetIssue(ctx context.Context, repo, key string) (*types.Issue, error) {
	number, err := strconv.Atoi(key)
	if err != nil {
		return nil, ferr.New(ferr.NotFound, fmt.Sprintf("invalid issue key %q", key))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gi, budget, err := a.client.GetIssue(ctx, repo, number)
	if err != nil {
		return nil, wrapGitHubErr(err)
	}
	a.limiter.Observe(budget)
	return toIssue(repo, gi), nil
}

func (a *Adapter) CreateIssue(ctx context.Context, repo string, req forge.CreateRequest) (*types.Issue, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ghReq := IssueRequest{Title: &req.Title}
	if req.Body != "" {
		ghReq.Body = &req.Body
	}
	if len(req.Labels) > 0 {
		ghReq.Labels = &req.Labels
	}
	if len(req.Assignees) > 0 {
		ghReq.Assignees = &req.Assignees
	}

	gi, err := a.client.CreateIssue(ctx, repo, ghReq)
	if err != nil {
		return nil, wrapGitHubErr(err)
	}
	return toIssue(repo, gi), nil
}

func (a *Adapter) UpdateIssueState(ctx context.Context, repo, key string, state types.State) error {
	number, err := strconv.Atoi(key)
	if err != nil {
		return ferr.New(ferr.NotFound, fmt.Sprintf("invalid issue key %q", key))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	ghState := string(state)
	_, err = a.client.EditIssue(ctx, repo, number, IssueRequest{State: &ghState})
	return wrapGitHubErr(err)
}

func (a *Adapter) AddLabel(ctx context.Context, repo, key, name string) error {
	number, err := strconv.Atoi(key)
	if err != nil {
		return ferr.New(ferr.NotFound, fmt.Sprintf("invalid issue key %q", key))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return wrapGitHubErr(a.client.AddLabels(ctx, repo, number, []string{name}))
}

func (a *Adapter) RemoveLabel(ctx context.Context, repo, key, name string) error {
	number, err := strconv.Atoi(key)
	if err != nil {
		return ferr.New(ferr.NotFound, fmt.Sprintf("invalid issue key %q", key))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	err = a.client.RemoveLabel(ctx, repo, number, name)
	if kind, ok := ferr.KindOf(err); ok && kind == ferr.NotFound {
		return nil // label already absent; removing it is a no-op success
	}
	return wrapGitHubErr(err)
}

func (a *Adapter) Assign(ctx context.Context, repo, key, handle string) error {
	number, err := strconv.Atoi(key)
	if err != nil {
		return ferr.New(ferr.NotFound, fmt.Sprintf("invalid issue key %q", key))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	assignees := []string{handle}
	_, err = a.client.EditIssue(ctx, repo, number, IssueRequest{Assignees: &assignees})
	return wrapGitHubErr(err)
}

func (a *Adapter) Comment(ctx context.Context, repo, key, body string) (string, error) {
	number, err := strconv.Atoi(key)
	if err != nil {
		return "", ferr.New(ferr.NotFound, fmt.Sprintf("invalid issue key %q", key))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	comment, err := a.client.CreateComment(ctx, repo, number, body)
	if err != nil {
		return "", wrapGitHubErr(err)
	}
	return strconv.FormatInt(comment.ID, 10), nil
}

// wrapGitHubErr passes ferr-tagged errors (not-found, payload-rejected,
// authentication) through unchanged and wraps everything else as
// connectivity, since an unrecognized failure from the REST client is
// almost always transient (network, 5xx).
func wrapGitHubErr(err error) error {
	if err == nil {
		return nil
	}
	if err == errUnauthorized {
		return err
	}
	if _, ok := ferr.KindOf(err); ok {
		return err
	}
	return ferr.Wrap(ferr.Connectivity, err)
}
