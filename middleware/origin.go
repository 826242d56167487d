package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker returns a websocket origin check. An empty allow list accepts
// every origin; otherwise the Origin header must match an entry by scheme and
// host, and requests without an Origin (non-browser clients) pass.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.ToLower(strings.TrimRight(a, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
