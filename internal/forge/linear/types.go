package linear

import (
	"net/http"
	"time"
)

const (
	DefaultAPIEndpoint = "https://api.linear.app/graphql"
	DefaultTimeout     = 30 * time.Second
	MaxRetries         = 3
	MaxPageSize        = 100
	RetryDelay         = 2 * time.Second
)

// Client is a thin GraphQL client bound to one Linear team.
type Client struct {
	APIKey     string
	TeamID     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient builds a client for the given team, using the Linear
// default endpoint and a timeout-bounded HTTP client.
func NewClient(apiKey, teamID string) *Client {
	return &Client{
		APIKey:   apiKey,
		TeamID:   teamID,
		Endpoint: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// GraphQLRequest is the envelope every Linear call sends.
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLError is one entry of a GraphQL response's "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
}

// State is a Linear workflow state: Backlog, Todo, In Progress, Done,
// Canceled, each tagged with a coarser Type used for the open/closed
// mapping (backlog/unstarted/started -> open, completed/canceled ->
// closed).
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Label is a first-class Linear entity with a stable ID, unlike
// GitHub's bare label strings.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignee is the subset of a Linear user record the adapter needs.
type Assignee struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Issue is Linear's native issue shape, as returned by the GraphQL API.
type Issue struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	State       State     `json:"state"`
	Assignee    *Assignee `json:"assignee"`
	Labels      struct {
		Nodes []Label `json:"nodes"`
	} `json:"labels"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

type issuesConnection struct {
	Nodes    []Issue `json:"nodes"`
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
}

// IssuesResponse wraps the "issues" root field of a query response.
type IssuesResponse struct {
	Issues issuesConnection `json:"issues"`
}

// TeamResponse wraps the "team" root field of the team-states query.
type TeamResponse struct {
	Team struct {
		ID     string `json:"id"`
		States *struct {
			Nodes []State `json:"nodes"`
		} `json:"states"`
	} `json:"team"`
}

// Team is the subset of a Linear team record the client exposes.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// TeamsResponse wraps the "teams" root field of the team-discovery query.
type TeamsResponse struct {
	Teams struct {
		Nodes []Team `json:"nodes"`
	} `json:"teams"`
}

type issueMutationResult struct {
	Success bool  `json:"success"`
	Issue   Issue `json:"issue"`
}

// IssueCreateResponse wraps the "issueCreate" mutation result.
type IssueCreateResponse struct {
	IssueCreate issueMutationResult `json:"issueCreate"`
}

// IssueUpdateResponse wraps the "issueUpdate" mutation result.
type IssueUpdateResponse struct {
	IssueUpdate issueMutationResult `json:"issueUpdate"`
}

// StateCache holds a team's workflow states, indexed for the
// open/closed mapping lookup the adapter needs on every read and
// write (SPEC_FULL.md §4.2 Adapter B).
type StateCache struct {
	States      []State
	StatesByID  map[string]State
	OpenStateID string
}
