package openrouter

import (
	"errors"
	"strings"
	"testing"

	"github.com/forPelevin/clipforge/internal/apperr"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		hosts   []string
		wantErr string
	}{
		{name: "empty means public endpoint", baseURL: ""},
		{name: "api host with trailing slash", baseURL: "https://api.openrouter.ai/"},
		{name: "path prefix is fine", baseURL: "https://openrouter.ai/api"},
		{name: "relative", baseURL: "openrouter.ai", wantErr: "absolute URL"},
		{name: "plain http", baseURL: "http://openrouter.ai", wantErr: "https is required"},
		{name: "userinfo", baseURL: "https://u:p@openrouter.ai", wantErr: "userinfo"},
		{name: "query", baseURL: "https://openrouter.ai?x=1", wantErr: "query and fragment"},
		{name: "fragment", baseURL: "https://openrouter.ai#x", wantErr: "query and fragment"},
		{name: "unknown host", baseURL: "https://evil.example", wantErr: `host "evil.example"`},
		{name: "configured host", baseURL: "https://Proxy.Internal:8443", hosts: []string{"https://proxy.internal:8443/"}},
		{name: "configured list replaces defaults", baseURL: "https://openrouter.ai", hosts: []string{"proxy.internal"}, wantErr: "allowed host list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.baseURL, tt.hosts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("expected invalid input kind, got %v", err)
			}
		})
	}
}

func TestParseHosts_BlankEntriesFallBack(t *testing.T) {
	got := parseHosts([]string{" ", "https://", "http:///"})
	if len(got) != len(defaultHosts) || !got.has("openrouter.ai") {
		t.Fatalf("expected default hosts, got %v", got)
	}
}
