package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token")
	c.BaseURL = srv.URL
	return c
}

func TestListIssuesPagePagination(t *testing.T) {
	page := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			w.Header().Set("Link", `<`+"http://"+r.Host+`/repos/acme/widgets/issues?page=2>; rel="next"`)
			json.NewEncoder(w).Encode([]Issue{{Number: 1, State: "open"}})
			return
		}
		json.NewEncoder(w).Encode([]Issue{{Number: 2, State: "open"}})
	})

	issues, next, _, err := c.ListIssuesPage(context.Background(), "acme/widgets", "open", time.Time{}, "")
	if err != nil {
		t.Fatalf("ListIssuesPage: %v", err)
	}
	if len(issues) != 1 || issues[0].Number != 1 {
		t.Fatalf("got %+v", issues)
	}
	if next == "" {
		t.Fatalf("expected a next link")
	}

	issues, next, _, err = c.ListIssuesPage(context.Background(), "acme/widgets", "open", time.Time{}, next)
	if err != nil {
		t.Fatalf("ListIssuesPage page 2: %v", err)
	}
	if len(issues) != 1 || issues[0].Number != 2 {
		t.Fatalf("got %+v", issues)
	}
	if next != "" {
		t.Fatalf("expected no further next link, got %q", next)
	}
}

func TestDoUnauthorized(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := c.do(context.Background(), http.MethodGet, "/user", nil, nil)
	if err != errUnauthorized {
		t.Fatalf("got %v, want errUnauthorized", err)
	}
}

func TestNextLinkParsing(t *testing.T) {
	header := `<https://api.github.com/x?page=2>; rel="next", <https://api.github.com/x?page=5>; rel="last"`
	if got := nextLink(header); got != "https://api.github.com/x?page=2" {
		t.Fatalf("got %q", got)
	}
	if got := nextLink(""); got != "" {
		t.Fatalf("expected empty next link for empty header, got %q", got)
	}
}
