package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
)

var errUnauthorized = ferr.New(ferr.Authentication, "github rejected the credential")

// rateInfo is what the adapter learns from a response's rate-limit
// headers, translated into a forge.Budget by the caller.
type rateInfo struct {
	remaining int
	resetAt   time.Time
}

// do sends req, decodes a JSON response body into out (if non-nil),
// and returns the parsed rate-limit headers alongside any pagination
// Link header found on the response.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (rateInfo, string, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return rateInfo{}, "", fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	target := path
	if !strings.HasPrefix(path, "http") {
		target = c.BaseURL + path
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return rateInfo{}, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return rateInfo{}, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return rateInfo{}, "", fmt.Errorf("read response: %w", err)
	}

	info := parseRateHeaders(resp.Header)
	next := nextLink(resp.Header.Get("Link"))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if info.remaining == 0 {
			return info, "", fmt.Errorf("rate limited")
		}
		return info, "", errUnauthorized
	}
	if resp.StatusCode == http.StatusNotFound {
		return info, "", ferr.New(ferr.NotFound, string(respBody))
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return info, "", ferr.New(ferr.PayloadRejected, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return info, "", fmt.Errorf("github API error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return info, "", fmt.Errorf("parse response: %w", err)
		}
	}
	return info, next, nil
}

func parseRateHeaders(h http.Header) rateInfo {
	remaining, _ := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	resetUnix, _ := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	info := rateInfo{remaining: remaining}
	if resetUnix > 0 {
		info.resetAt = time.Unix(resetUnix, 0)
	}
	return info
}

// nextLink extracts the "next" URL from a RFC 5988 Link header, the
// cursor GitHub's REST pagination uses in place of an opaque token.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}
		urlPart := strings.Trim(segments[0], "<> ")
		for _, rel := range segments[1:] {
			if strings.TrimSpace(rel) == `rel="next"` {
				return urlPart
			}
		}
	}
	return ""
}

func (c *Client) budget(info rateInfo) forge.Budget {
	return forge.Budget{Remaining: info.remaining, ResetAt: info.resetAt}
}

// ListIssuesPage fetches one page of a repo's issues (state is
// "open", "closed", or "all"; since filters by last-updated time when
// non-zero). path is empty for the first call and the prior page's
// next-link thereafter.
func (c *Client) ListIssuesPage(ctx context.Context, repo, state string, since time.Time, path string) ([]Issue, string, forge.Budget, error) {
	if path == "" {
		q := url.Values{}
		q.Set("state", state)
		q.Set("per_page", strconv.Itoa(PerPage))
		q.Set("sort", "updated")
		q.Set("direction", "asc")
		if !since.IsZero() {
			q.Set("since", since.UTC().Format(time.RFC3339))
		}
		path = "/repos/" + repo + "/issues?" + q.Encode()
	}

	var issues []Issue
	info, next, err := c.do(ctx, http.MethodGet, path, nil, &issues)
	if err != nil {
		return nil, "", forge.Budget{}, err
	}
	return issues, next, c.budget(info), nil
}

func (c *Client) GetIssue(ctx context.Context, repo string, number int) (*Issue, forge.Budget, error) {
	var issue Issue
	info, _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/issues/%d", repo, number), nil, &issue)
	if err != nil {
		return nil, forge.Budget{}, err
	}
	return &issue, c.budget(info), nil
}

func (c *Client) CreateIssue(ctx context.Context, repo string, req IssueRequest) (*Issue, error) {
	var issue Issue
	_, _, err := c.do(ctx, http.MethodPost, "/repos/"+repo+"/issues", req, &issue)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) EditIssue(ctx context.Context, repo string, number int, req IssueRequest) (*Issue, error) {
	var issue Issue
	_, _, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/%d", repo, number), req, &issue)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) AddLabels(ctx context.Context, repo string, number int, labels []string) error {
	_, _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/labels", repo, number),
		map[string][]string{"labels": labels}, nil)
	return err
}

func (c *Client) RemoveLabel(ctx context.Context, repo string, number int, label string) error {
	_, _, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/repos/%s/issues/%d/labels/%s", repo, number, url.PathEscape(label)), nil, nil)
	return err
}

func (c *Client) CreateComment(ctx context.Context, repo string, number int, body string) (*Comment, error) {
	var comment Comment
	_, _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number),
		map[string]string{"body": body}, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// AuthenticatedUser returns the login of the token's owner.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	var user User
	_, _, err := c.do(ctx, http.MethodGet, "/user", nil, &user)
	if err != nil {
		return "", err
	}
	return user.Login, nil
}
