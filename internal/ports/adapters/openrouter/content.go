package openrouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var errEmptyContent = errors.New("openrouter: empty content")

// flattenContent reads a message content field, which is either a string or
// a list of typed parts of which only text parts are kept.
func flattenContent(v any) (string, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []any:
		var parts []string
		for _, it := range x {
			if m, ok := it.(map[string]any); ok {
				if t, ok := m["text"].(string); ok {
					parts = append(parts, t)
				}
			}
		}
		s = strings.Join(parts, "")
	case nil:
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
	if strings.TrimSpace(s) == "" {
		return "", errEmptyContent
	}
	return s, nil
}

// jsonObject pulls the outermost JSON object out of model output that may
// be wrapped in a markdown fence or surrounded by prose.
func jsonObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errEmptyContent
	}
	if rest, ok := strings.CutPrefix(t, "```"); ok {
		if _, body, found := strings.Cut(rest, "\n"); found {
			rest = body
		}
		t, _, _ = strings.Cut(rest, "```")
		t = strings.TrimSpace(t)
	}
	lo, hi := strings.IndexByte(t, '{'), strings.LastIndexByte(t, '}')
	if lo < 0 || hi <= lo {
		return "", fmt.Errorf("openrouter: could not locate JSON object in: %q", truncate(t, 200))
	}
	obj := t[lo : hi+1]
	if !json.Valid([]byte(obj)) {
		return "", fmt.Errorf("openrouter: malformed JSON object: %q", truncate(obj, 200))
	}
	return obj, nil
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)[^\n\r,;]+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)[^\n\r,;]+`), "${1}[REDACTED]"},
}

// redact strips the API key and anything that looks like a credential from
// text that may end up in logs or error messages.
func redact(s, apiKey string) string {
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[REDACTED]")
	}
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
