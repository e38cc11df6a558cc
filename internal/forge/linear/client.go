// Package linear implements the forge.Adapter contract against
// Linear's GraphQL API (SPEC_FULL.md §4.2 Adapter B): opaque UUID
// identity, team-prefixed display keys, workflow states mapped onto
// {open, closed} through a per-team state catalog, and first-class
// labels with stable IDs.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forgectl/fg/internal/ferr"
)

var errUnauthorized = ferr.New(ferr.Authentication, "linear rejected the credential")

const issueFields = `
	id
	identifier
	title
	description
	url
	state { id name type }
	assignee { id name email displayName }
	labels { nodes { id name } }
	createdAt
	updatedAt
	completedAt
`

var issuesQuery = fmt.Sprintf(`
	query Issues($filter: IssueFilter!, $first: Int!, $after: String) {
		issues(first: $first, after: $after, filter: $filter) {
			nodes { %s }
			pageInfo { hasNextPage endCursor }
		}
	}
`, issueFields)

// Execute sends a GraphQL request, retrying on 429 with exponential
// backoff up to MaxRetries.
func (c *Client) Execute(ctx context.Context, req *GraphQLRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", c.APIKey)

		resp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := RetryDelay * time.Duration(1<<attempt)
			lastErr = fmt.Errorf("rate limited (attempt %d/%d)", attempt+1, MaxRetries+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, errUnauthorized
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("linear API error: %s (status %d)", string(respBody), resp.StatusCode)
		}

		var gqlResp struct {
			Data   json.RawMessage `json:"data"`
			Errors []GraphQLError  `json:"errors,omitempty"`
		}
		if err := json.Unmarshal(respBody, &gqlResp); err != nil {
			return nil, fmt.Errorf("parse response: %w (body: %s)", err, string(respBody))
		}
		if len(gqlResp.Errors) > 0 {
			msgs := make([]string, len(gqlResp.Errors))
			for i, e := range gqlResp.Errors {
				msgs[i] = e.Message
			}
			return nil, fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
		}

		return gqlResp.Data, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func stateFilterFor(state string) map[string]interface{} {
	switch state {
	case "open":
		return map[string]interface{}{"type": map[string]interface{}{"in": []string{"backlog", "unstarted", "started"}}}
	case "closed":
		return map[string]interface{}{"type": map[string]interface{}{"in": []string{"completed", "canceled"}}}
	default:
		return nil
	}
}

// fetchPage runs a single issues query, used by both the open-issues
// pass and the closed-since pass of the adapter's lazy sequence.
func (c *Client) fetchPage(ctx context.Context, filter map[string]interface{}, cursor string) ([]Issue, string, bool, error) {
	variables := map[string]interface{}{
		"filter": filter,
		"first":  MaxPageSize,
	}
	if cursor != "" {
		variables["after"] = cursor
	}

	data, err := c.Execute(ctx, &GraphQLRequest{Query: issuesQuery, Variables: variables})
	if err != nil {
		return nil, "", false, err
	}

	var resp IssuesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, "", false, fmt.Errorf("parse issues response: %w", err)
	}
	return resp.Issues.Nodes, resp.Issues.PageInfo.EndCursor, resp.Issues.PageInfo.HasNextPage, nil
}

func (c *Client) baseFilter() map[string]interface{} {
	return map[string]interface{}{
		"team": map[string]interface{}{"id": map[string]interface{}{"eq": c.TeamID}},
	}
}

// GetTeamStates fetches the workflow states for the configured team.
func (c *Client) GetTeamStates(ctx context.Context) ([]State, error) {
	query := `
		query TeamStates($teamId: String!) {
			team(id: $teamId) { id states { nodes { id name type } } }
		}
	`
	data, err := c.Execute(ctx, &GraphQLRequest{Query: query, Variables: map[string]interface{}{"teamId": c.TeamID}})
	if err != nil {
		return nil, fmt.Errorf("fetch team states: %w", err)
	}

	var resp TeamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse team states response: %w", err)
	}
	if resp.Team.States == nil {
		return nil, fmt.Errorf("no states found for team %s", c.TeamID)
	}
	return resp.Team.States.Nodes, nil
}

// CreateIssue creates a new issue in Linear.
func (c *Client) CreateIssue(ctx context.Context, title, description, stateID string, labelIDs []string) (*Issue, error) {
	query := fmt.Sprintf(`
		mutation CreateIssue($input: IssueCreateInput!) {
			issueCreate(input: $input) { success issue { %s } }
		}
	`, issueFields)

	input := map[string]interface{}{
		"teamId":      c.TeamID,
		"title":       title,
		"description": description,
	}
	if stateID != "" {
		input["stateId"] = stateID
	}
	if len(labelIDs) > 0 {
		input["labelIds"] = labelIDs
	}

	data, err := c.Execute(ctx, &GraphQLRequest{Query: query, Variables: map[string]interface{}{"input": input}})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	var resp IssueCreateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}
	if !resp.IssueCreate.Success {
		return nil, fmt.Errorf("issue creation reported as unsuccessful")
	}
	return &resp.IssueCreate.Issue, nil
}

// UpdateIssue applies a partial update to an existing issue, keyed by
// its opaque UUID (never the display identifier).
func (c *Client) UpdateIssue(ctx context.Context, issueID string, updates map[string]interface{}) (*Issue, error) {
	query := fmt.Sprintf(`
		mutation UpdateIssue($id: String!, $input: IssueUpdateInput!) {
			issueUpdate(id: $id, input: $input) { success issue { %s } }
		}
	`, issueFields)

	data, err := c.Execute(ctx, &GraphQLRequest{
		Query:     query,
		Variables: map[string]interface{}{"id": issueID, "input": updates},
	})
	if err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}

	var resp IssueUpdateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse update response: %w", err)
	}
	if !resp.IssueUpdate.Success {
		return nil, fmt.Errorf("issue update reported as unsuccessful")
	}
	return &resp.IssueUpdate.Issue, nil
}

// AddLabel attaches labelID to an issue via Linear's dedicated
// issueAddLabel mutation, rather than round-tripping the full label
// set through UpdateIssue.
func (c *Client) AddLabel(ctx context.Context, issueID, labelID string) error {
	query := `
		mutation AddLabel($id: String!, $labelId: String!) {
			issueAddLabel(id: $id, labelId: $labelId) { success }
		}
	`
	return c.runLabelMutation(ctx, query, issueID, labelID)
}

// RemoveLabel detaches labelID from an issue.
func (c *Client) RemoveLabel(ctx context.Context, issueID, labelID string) error {
	query := `
		mutation RemoveLabel($id: String!, $labelId: String!) {
			issueRemoveLabel(id: $id, labelId: $labelId) { success }
		}
	`
	return c.runLabelMutation(ctx, query, issueID, labelID)
}

func (c *Client) runLabelMutation(ctx context.Context, query, issueID, labelID string) error {
	data, err := c.Execute(ctx, &GraphQLRequest{
		Query:     query,
		Variables: map[string]interface{}{"id": issueID, "labelId": labelID},
	})
	if err != nil {
		return err
	}
	var resp struct {
		Success bool `json:"success"`
	}
	// both mutations return a single top-level field; unwrap whichever is present
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("parse label mutation response: %w", err)
	}
	for _, raw := range wrapper {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("parse label mutation response: %w", err)
		}
		if !resp.Success {
			return fmt.Errorf("label mutation reported as unsuccessful")
		}
		return nil
	}
	return fmt.Errorf("label mutation returned no result")
}

// ListLabels fetches the team's label catalog, used to resolve
// human-readable label names to IDs.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	query := `
		query TeamLabels($teamId: String!) {
			team(id: $teamId) { labels { nodes { id name } } }
		}
	`
	data, err := c.Execute(ctx, &GraphQLRequest{Query: query, Variables: map[string]interface{}{"teamId": c.TeamID}})
	if err != nil {
		return nil, fmt.Errorf("fetch team labels: %w", err)
	}

	var resp struct {
		Team struct {
			Labels struct {
				Nodes []Label `json:"nodes"`
			} `json:"labels"`
		} `json:"team"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse team labels response: %w", err)
	}
	return resp.Team.Labels.Nodes, nil
}

// CreateComment posts a comment on an issue and returns its ID.
func (c *Client) CreateComment(ctx context.Context, issueID, body string) (string, error) {
	query := `
		mutation CreateComment($input: CommentCreateInput!) {
			commentCreate(input: $input) { success comment { id } }
		}
	`
	data, err := c.Execute(ctx, &GraphQLRequest{
		Query: query,
		Variables: map[string]interface{}{
			"input": map[string]interface{}{"issueId": issueID, "body": body},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create comment: %w", err)
	}

	var resp struct {
		CommentCreate struct {
			Success bool `json:"success"`
			Comment struct {
				ID string `json:"id"`
			} `json:"comment"`
		} `json:"commentCreate"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse comment response: %w", err)
	}
	if !resp.CommentCreate.Success {
		return "", fmt.Errorf("comment creation reported as unsuccessful")
	}
	return resp.CommentCreate.Comment.ID, nil
}

// FindIssueByIdentifier retrieves a single issue by its display
// identifier (e.g. "TEAM-123"). Returns nil, nil if not found.
func (c *Client) FindIssueByIdentifier(ctx context.Context, identifier string) (*Issue, error) {
	filter := c.baseFilter()
	if parts := strings.Split(identifier, "-"); len(parts) >= 2 {
		if number, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			filter["number"] = map[string]interface{}{"eq": number}
		}
	}

	nodes, _, _, err := c.fetchPage(ctx, filter, "")
	if err != nil {
		return nil, fmt.Errorf("fetch issue by identifier: %w", err)
	}
	for i := range nodes {
		if nodes[i].Identifier == identifier {
			return &nodes[i], nil
		}
	}
	return nil, nil
}

// FetchTeams lists teams visible to the configured API key, used by
// AuthProbe to check that the bound team key is among them.
func (c *Client) FetchTeams(ctx context.Context) ([]Team, error) {
	query := `query { teams { nodes { id name key } } }`
	data, err := c.Execute(ctx, &GraphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("fetch teams: %w", err)
	}

	var resp TeamsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse teams response: %w", err)
	}
	return resp.Teams.Nodes, nil
}

// BuildStateCache fetches and indexes a team's workflow states.
func BuildStateCache(ctx context.Context, client *Client) (*StateCache, error) {
	states, err := client.GetTeamStates(ctx)
	if err != nil {
		return nil, err
	}

	cache := &StateCache{States: states, StatesByID: make(map[string]State, len(states))}
	for _, s := range states {
		cache.StatesByID[s.ID] = s
		if cache.OpenStateID == "" && (s.Type == "unstarted" || s.Type == "backlog") {
			cache.OpenStateID = s.ID
		}
	}
	return cache, nil
}
