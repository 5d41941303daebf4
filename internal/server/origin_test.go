package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicyAllowList(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", "https://chat.example.com"})

	cases := []struct {
		name   string
		origin string
		want   bool
	}{
		{"exact match", "http://localhost:8080", true},
		{"second entry", "https://chat.example.com", true},
		{"scheme case folded", "HTTP://LOCALHOST:8080", true},
		{"host case folded", "https://CHAT.EXAMPLE.COM", true},
		{"wrong scheme", "https://localhost:8080", false},
		{"wrong port", "http://localhost:9090", false},
		{"unlisted host", "http://evil.example.com", false},
		{"missing header", "", false},
		{"not a url", "::::", false},
		{"schemeless", "localhost:8080", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.check(requestWithOrigin(tc.origin)); got != tc.want {
				t.Errorf("check(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"})

	if !policy.check(requestWithOrigin("http://anything.example.com")) {
		t.Error("wildcard policy rejected a well-formed origin")
	}
	// Even with a wildcard, the Origin header must be present and parseable.
	if policy.check(requestWithOrigin("")) {
		t.Error("wildcard policy accepted a request with no Origin header")
	}
	if policy.check(requestWithOrigin("not a url at all")) {
		t.Error("wildcard policy accepted a malformed origin")
	}
}

func TestOriginPolicySkipsInvalidConfigEntries(t *testing.T) {
	policy := newOriginPolicy([]string{"", "   ", "no-scheme", "http://good.example.com"})

	if len(policy.allowed) != 1 {
		t.Errorf("allowed set has %d entries, want 1", len(policy.allowed))
	}
	if !policy.check(requestWithOrigin("http://good.example.com")) {
		t.Error("valid configured origin rejected")
	}
}
