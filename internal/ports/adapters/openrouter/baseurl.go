package openrouter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/forPelevin/clipforge/internal/apperr"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultHosts = hostSet{"openrouter.ai": {}, "api.openrouter.ai": {}}

func normalizeBaseURL(baseURL string) string {
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// hostSet holds the hosts the client may send the API key to.
type hostSet map[string]struct{}

// parseHosts accepts bare hosts or URLs and drops schemes, ports and paths.
// An empty result falls back to the public OpenRouter hosts.
func parseHosts(entries []string) hostSet {
	out := hostSet{}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if i := strings.Index(e, "://"); i >= 0 {
			e = e[i+3:]
		}
		if i := strings.IndexAny(e, "/:"); i >= 0 {
			e = e[:i]
		}
		if e != "" {
			out[e] = struct{}{}
		}
	}
	if len(out) == 0 {
		return defaultHosts
	}
	return out
}

func (h hostSet) has(host string) bool {
	_, ok := h[strings.ToLower(host)]
	return ok
}

// ValidateBaseURL accepts only a plain https origin (optionally with a path)
// on an allowed host. An empty baseURL means the public endpoint.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	raw := normalizeBaseURL(baseURL)
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, err, "invalid openrouter base url")
	}

	var problem string
	switch {
	case !u.IsAbs() || u.Hostname() == "":
		problem = "absolute URL with host is required"
	case u.User != nil:
		problem = "userinfo is not allowed"
	case u.RawQuery != "" || u.ForceQuery || u.Fragment != "":
		problem = "query and fragment are not allowed"
	case !strings.EqualFold(u.Scheme, "https"):
		problem = "https is required"
	case !parseHosts(allowedHosts).has(u.Hostname()):
		problem = fmt.Sprintf("host %q is not in the allowed host list", strings.ToLower(u.Hostname()))
	default:
		return nil
	}
	return apperr.New(apperr.ErrInvalidInput, "invalid openrouter base url %q: %s", raw, problem)
}
