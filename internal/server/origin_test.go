package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func originRequest(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicyAllowList(t *testing.T) {
	policy := newOriginPolicy([]string{"https://chat.example.com", "http://localhost:3000"}, zerolog.Nop())

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"exact match", "https://chat.example.com", true},
		{"case insensitive", "HTTPS://Chat.Example.COM", true},
		{"localhost with port", "http://localhost:3000", true},
		{"wrong scheme", "http://chat.example.com", false},
		{"wrong port", "http://localhost:4000", false},
		{"unlisted host", "https://evil.example.com", false},
		{"missing header", "", false},
		{"garbage header", "not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, policy.check(originRequest(tt.origin)))
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, zerolog.Nop())

	assert.True(t, policy.check(originRequest("https://anything.example.com")))
	// Wildcard still requires a parseable Origin header.
	assert.False(t, policy.check(originRequest("")))
	assert.False(t, policy.check(originRequest("%%%")))
}

func TestOriginPolicySkipsInvalidConfigEntries(t *testing.T) {
	policy := newOriginPolicy([]string{"", "   ", "no-scheme", "https://ok.example.com"}, zerolog.Nop())

	assert.True(t, policy.check(originRequest("https://ok.example.com")))
	assert.False(t, policy.check(originRequest("https://no-scheme")))
}
