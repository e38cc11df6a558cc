package main

import (
	"testing"

	"github.com/forgectl/fg/internal/ferr"
)

func TestExitCodeForKind(t *testing.T) {
	cases := []struct {
		kind ferr.Kind
		code int
	}{
		{ferr.NotFound, 6},
		{ferr.Authentication, 3},
		{ferr.Conflict, 4},
		{ferr.Connectivity, 5},
		{ferr.StoreBusy, 5},
		{ferr.StoreCorrupt, 5},
		{ferr.RateLimit, 1},
	}
	for _, c := range cases {
		if got := exitCodeForKind(c.kind); got != c.code {
			t.Errorf("exitCodeForKind(%s) = %d, want %d", c.kind, got, c.code)
		}
	}
}

func TestAsFerrUnwraps(t *testing.T) {
	inner := ferr.New(ferr.Authentication, "bad token").WithBinding("github:acme/widgets")
	wrapped := ferr.Wrap(ferr.Connectivity, inner)

	var fe *ferr.Error
	if !asFerr(wrapped, &fe) {
		t.Fatal("expected asFerr to find an *ferr.Error")
	}
	if fe.Kind != ferr.Connectivity {
		t.Fatalf("asFerr kind = %s, want the outer error's kind %s", fe.Kind, ferr.Connectivity)
	}
}

func TestParseForgeKind(t *testing.T) {
	if k, err := parseForgeKind("GitHub"); err != nil || k != "github" {
		t.Fatalf("parseForgeKind(GitHub) = %v, %v", k, err)
	}
	if _, err := parseForgeKind("jira"); err == nil {
		t.Fatal("expected an error for an unsupported forge")
	}
}
