package auth

import (
	"net/http"
	"strings"
)

// SignInPath is the page unauthenticated browsers are sent to.
const SignInPath = "/auth/signin"

// PathClass is how Guard treats a request path.
type PathClass int

const (
	// PathPublic always passes: auth endpoints, the sign-in page, assets.
	PathPublic PathClass = iota
	// PathAPI always passes; API handlers enforce their own session checks.
	PathAPI
	// PathPage needs a session or is redirected to SignInPath.
	PathPage
)

// Classify maps a URL path to its PathClass. Rules are checked in order, so
// /api/auth/* is public even though it is also under /api.
func Classify(path string) PathClass {
	switch {
	case strings.HasPrefix(path, "/api/auth/"), path == "/api/auth":
		return PathPublic
	case path == SignInPath:
		return PathPublic
	case strings.HasPrefix(path, "/static/"),
		strings.HasPrefix(path, "/favicon"),
		path == "/robots.txt":
		return PathPublic
	case strings.HasPrefix(path, "/api/"), path == "/api":
		return PathAPI
	default:
		return PathPage
	}
}

// Guard is the route guard. It must run after LoadSession.
//
// Page requests without a session get a 307 to the sign-in page. API
// requests are never redirected: a redirect means nothing to a programmatic
// client, so they reach their handler and get a structured 401 from there.
// The guard keeps no state and has no side effects beyond allow/redirect.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Classify(r.URL.Path) == PathPage {
			if _, ok := SessionFromContext(r.Context()); !ok {
				http.Redirect(w, r, SignInPath, http.StatusTemporaryRedirect)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
