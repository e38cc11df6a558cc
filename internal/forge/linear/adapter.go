package linear

import (
	"context"
	"fmt"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/types"
)

// Adapter implements forge.Adapter against one Linear team, the team
// ID given to NewAdapter, which queries use as-is. repo (as passed by
// callers) is the team key; AuthProbe checks that a team with that key
// is visible, but the key is not resolved to an ID. State and label
// catalogs are loaded lazily on first use.
type Adapter struct {
	client  *Client
	limiter *forge.Limiter

	states *StateCache
	labels map[string]string // label name -> ID, populated on demand
}

// NewAdapter builds a Linear adapter for the given team, using apiKey
// as the bearer credential.
func NewAdapter(apiKey, teamID string) *Adapter {
	return &Adapter{
		client:  NewClient(apiKey, teamID),
		limiter: forge.NewLimiter(4),
		labels:  make(map[string]string),
	}
}

var _ forge.Adapter = (*Adapter)(nil)

func (a *Adapter) Kind() types.ForgeKind { return types.ForgeLinear }

func (a *Adapter) AuthProbe(ctx context.Context, repo string) (forge.Identity, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return forge.Identity{}, err
	}
	teams, err := a.client.FetchTeams(ctx)
	if err != nil {
		if err == errUnauthorized {
			return forge.Identity{}, err
		}
		return forge.Identity{}, ferr.Wrap(ferr.Connectivity, err)
	}
	for _, t := range teams {
		if t.Key == repo {
			return forge.Identity{Handle: t.Name, Forge: types.ForgeLinear}, nil
		}
	}
	return forge.Identity{}, ferr.New(ferr.NotFound, fmt.Sprintf("team %q not visible to this credential", repo))
}

func (a *Adapter) ensureStateCache(ctx context.Context) error {
	if a.states != nil {
		return nil
	}
	cache, err := BuildStateCache(ctx, a.client)
	if err != nil {
		return ferr.Wrap(ferr.Connectivity, err)
	}
	a.states = cache
	return nil
}

func (a *Adapter) resolveLabelID(ctx context.Context, name string) (string, error) {
	if id, ok := a.labels[name]; ok {
		return id, nil
	}
	labels, err := a.client.ListLabels(ctx)
	if err != nil {
		return "", ferr.Wrap(ferr.Connectivity, err)
	}
	for _, l := range labels {
		a.labels[l.Name] = l.ID
	}
	id, ok := a.labels[name]
	if !ok {
		return "", ferr.New(ferr.PayloadRejected, fmt.Sprintf("label %q does not exist", name))
	}
	return id, nil
}

// linearSeq is the lazy sequence ListIssues returns: an open-issues
// pass followed by a closed-since pass, each paginated independently.
type linearSeq struct {
	adapter *Adapter
	since   string

	phase      int // 0 = open, 1 = closed-since, 2 = exhausted
	cursor     string
}

func (a *Adapter) ListIssues(ctx context.Context, repo string, sinceCursor string) forge.IssueSeq {
	return &linearSeq{adapter: a, since: sinceCursor}
}

func (s *linearSeq) Next(ctx context.Context) ([]*types.Issue, bool, error) {
	if s.phase == 2 {
		return nil, true, nil
	}
	if err := s.adapter.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	var filter map[string]interface{}
	switch s.phase {
	case 0:
		filter = s.adapter.client.baseFilter()
		for k, v := range stateFilterFor("open") {
			filter[k] = v
		}
	case 1:
		filter = s.adapter.client.baseFilter()
		for k, v := range stateFilterFor("closed") {
			filter[k] = v
		}
		if s.since != "" {
			if t, err := time.Parse(time.RFC3339, s.since); err == nil {
				filter["updatedAt"] = map[string]interface{}{"gte": t.UTC().Format(time.RFC3339)}
			}
		}
	}

	nodes, cursor, hasNext, err := s.adapter.client.fetchPage(ctx, filter, s.cursor)
	if err != nil {
		if err == errUnauthorized {
			return nil, false, err
		}
		return nil, false, ferr.Wrap(ferr.Connectivity, err)
	}

	issues := make([]*types.Issue, 0, len(nodes))
	for i := range nodes {
		issues = append(issues, toIssue(&nodes[i]))
	}

	if hasNext {
		s.cursor = cursor
		return issues, false, nil
	}

	s.cursor = ""
	s.phase++
	return issues, false, nil
}

func (a *Adapter) GetIssue(ctx context.Context, repo, key string) (*types.Issue, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	li, err := a.client.FindIssueByIdentifier(ctx, key)
	if err != nil {
		return nil, ferr.Wrap(ferr.Connectivity, err)
	}
	if li == nil {
		return nil, ferr.New(ferr.NotFound, fmt.Sprintf("issue %s not found", key))
	}
	return toIssue(li), nil
}

func (a *Adapter) CreateIssue(ctx context.Context, repo string, req forge.CreateRequest) (*types.Issue, error) {
	if err := a.ensureStateCache(ctx); err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var labelIDs []string
	for _, name := range req.Labels {
		id, err := a.resolveLabelID(ctx, name)
		if err != nil {
			return nil, err
		}
		labelIDs = append(labelIDs, id)
	}

	li, err := a.client.CreateIssue(ctx, req.Title, req.Body, a.states.OpenStateID, labelIDs)
	if err != nil {
		return nil, ferr.Wrap(ferr.Connectivity, err)
	}
	return toIssue(li), nil
}

func (a *Adapter) UpdateIssueState(ctx context.Context, repo, key string, state types.State) error {
	if err := a.ensureStateCache(ctx); err != nil {
		return err
	}
	issue, err := a.GetIssue(ctx, repo, key)
	if err != nil {
		return err
	}
	if issue.State == state {
		return nil // already in the target state; no-op success
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	stateID := a.states.stateIDFor(state)
	_, err = a.client.UpdateIssue(ctx, issue.NativeID, map[string]interface{}{"stateId": stateID})
	if err != nil {
		return ferr.Wrap(ferr.Connectivity, err)
	}
	return nil
}

func (a *Adapter) AddLabel(ctx context.Context, repo, key, name string) error {
	labelID, err := a.resolveLabelID(ctx, name)
	if err != nil {
		return err
	}
	issue, err := a.GetIssue(ctx, repo, key)
	if err != nil {
		return err
	}
	if issue.HasLabel(name) {
		return nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := a.client.AddLabel(ctx, issue.NativeID, labelID); err != nil {
		return ferr.Wrap(ferr.Connectivity, err)
	}
	return nil
}

func (a *Adapter) RemoveLabel(ctx context.Context, repo, key, name string) error {
	labelID, err := a.resolveLabelID(ctx, name)
	if err != nil {
		return err
	}
	issue, err := a.GetIssue(ctx, repo, key)
	if err != nil {
		return err
	}
	if !issue.HasLabel(name) {
		return nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := a.client.RemoveLabel(ctx, issue.NativeID, labelID); err != nil {
		return ferr.Wrap(ferr.Connectivity, err)
	}
	return nil
}

func (a *Adapter) Assign(ctx context.Context, repo, key, handle string) error {
	issue, err := a.GetIssue(ctx, repo, key)
	if err != nil {
		return err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = a.client.UpdateIssue(ctx, issue.NativeID, map[string]interface{}{"assigneeId": handle})
	if err != nil {
		return ferr.Wrap(ferr.Connectivity, err)
	}
	return nil
}

func (a *Adapter) Comment(ctx context.Context, repo, key, body string) (string, error) {
	issue, err := a.GetIssue(ctx, repo, key)
	if err != nil {
		return "", err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	id, err := a.client.CreateComment(ctx, issue.NativeID, body)
	if err != nil {
		return "", ferr.Wrap(ferr.Connectivity, err)
	}
	return id, nil
}
