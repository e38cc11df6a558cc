package main

import "testing"

func TestParseGitHubRemote(t *testing.T) {
	cases := []struct {
		url        string
		owner, name string
		ok         bool
	}{
		{"git@github.com:acme/widgets.git", "acme", "widgets", true},
		{"https://github.com/acme/widgets.git", "acme", "widgets", true},
		{"https://github.com/acme/widgets", "acme", "widgets", true},
		{"git@gitlab.com:acme/widgets.git", "", "", false},
	}
	for _, c := range cases {
		owner, name, ok := parseGitHubRemote(c.url)
		if ok != c.ok || owner != c.owner || name != c.name {
			t.Errorf("parseGitHubRemote(%q) = %q, %q, %v; want %q, %q, %v", c.url, owner, name, ok, c.owner, c.name, c.ok)
		}
	}
}
