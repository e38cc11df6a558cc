// Package github implements the forge.Adapter contract against the
// GitHub REST API (SPEC_FULL.md §4.2 Adapter A): numeric per-repo
// issue keys, a two-valued state, bare label strings, and link-header
// pagination.
package github

import (
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 30 * time.Second
	MaxRetries     = 3
	PerPage        = 100
)

// Client is a thin REST client bound to one token.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client authenticated with a personal access
// token or installation token.
func NewClient(token string) *Client {
	return &Client{
		Token:      token,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// User is the subset of a GitHub user record the adapter needs.
type User struct {
	Login string `json:"login"`
}

// Label is GitHub's bare label shape: a name plus an optional color,
// unlike Linear's ID-addressed label entities.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Issue is GitHub's native issue shape, as returned by the REST API.
// PullRequest is non-nil when this record is actually a pull request;
// the adapter filters those out since they are not forge issues.
type Issue struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	State       string    `json:"state"`
	User        User      `json:"user"`
	Labels      []Label   `json:"labels"`
	Assignees   []User    `json:"assignees"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PullRequest interface{} `json:"pull_request,omitempty"`
}

// IssueRequest is the create/update payload. Pointer fields are
// omitted from the request body when nil, which is how the API
// distinguishes "leave unchanged" from "clear".
type IssueRequest struct {
	Title     *string   `json:"title,omitempty"`
	Body      *string   `json:"body,omitempty"`
	State     *string   `json:"state,omitempty"`
	Labels    *[]string `json:"labels,omitempty"`
	Assignees *[]string `json:"assignees,omitempty"`
}

// Comment is the REST shape of an issue comment.
type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}
