// Package guard decides whether navigation to a route is allowed. It only
// checks that a session token is present; it never calls the backend.
package guard

import (
	"net/http"
	"strings"

	"banco/internal/log"
	"banco/internal/transport"
)

const LoginPath = "/login"

// DefaultProtected lists the route prefixes that require a session.
var DefaultProtected = []string{"/dashboard", "/accounts", "/operations", "/logout", "/seed"}

type Guard struct {
	tokens    transport.TokenSource
	protected []string
	logger    *log.Logger
}

// New guards the given route prefixes, or DefaultProtected when none are given.
func New(tokens transport.TokenSource, logger *log.Logger, protected ...string) *Guard {
	if len(protected) == 0 {
		protected = DefaultProtected
	}
	return &Guard{
		tokens:    tokens,
		protected: protected,
		logger:    log.OrNop(logger).WithComponent(log.ComponentGuard),
	}
}

// Protected reports whether route needs a session.
func (g *Guard) Protected(route string) bool {
	for _, p := range g.protected {
		if route == p || strings.HasPrefix(route, p+"/") {
			return true
		}
	}
	return false
}

// CanEnter allows unprotected routes always and protected routes only
// while a token is present.
func (g *Guard) CanEnter(route string) bool {
	if !g.Protected(route) {
		return true
	}
	_, ok := g.tokens.CurrentToken()
	return ok
}

// Middleware redirects denied requests to the login page.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.CanEnter(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		g.logger.DebugContext(r.Context(), "Navigation denied", log.FieldPath, r.URL.Path)
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}
