// Package transport holds the outbound HTTP plumbing shared by every call to
// the remote backend: connection pooling and bearer-token authorization.
package transport

import (
	"net/http"
)

// TokenSource exposes the current session token. The session store
// implements it.
type TokenSource interface {
	CurrentToken() (string, bool)
}

// Next forwards a request down the chain.
type Next func(*http.Request) (*http.Response, error)

// Authorizer attaches "Authorization: Bearer <token>" to outbound requests
// whenever a session token is present. It never blocks, retries or inspects
// responses; a missing token is forwarded unauthenticated so the backend
// decides.
type Authorizer struct {
	Tokens TokenSource
	Base   http.RoundTripper
}

// NewAuthorizer wraps base, or http.DefaultTransport when base is nil.
func NewAuthorizer(tokens TokenSource, base http.RoundTripper) *Authorizer {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Authorizer{Tokens: tokens, Base: base}
}

// Intercept decorates req for next. The original request is never modified:
// with a token a clone carrying the header is forwarded, without one the
// original goes through untouched.
func (a *Authorizer) Intercept(req *http.Request, next Next) (*http.Response, error) {
	if a.Tokens == nil {
		return next(req)
	}
	token, ok := a.Tokens.CurrentToken()
	if !ok || token == "" {
		return next(req)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return next(authed)
}

// RoundTrip implements http.RoundTripper.
func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	return a.Intercept(req, a.Base.RoundTrip)
}
