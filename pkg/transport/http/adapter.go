// Package http adapts net/http handlers to the tokengate authentication
// pipeline.
package http

import (
	"context"
	"net/http"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/transport"
)

// Request exposes an *http.Request as an auth.RequestAdapter.
type Request struct {
	R *http.Request
}

var _ auth.RequestAdapter = Request{}

// Header returns the first value of the named header. Names are matched
// case-insensitively.
func (r Request) Header(name string) (string, bool) {
	vals := r.R.Header.Values(name)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Cookie returns the value of the named cookie.
func (r Request) Cookie(name string) (string, bool) {
	c, err := r.R.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// RawQuery returns the undecoded query string.
func (r Request) RawQuery() string {
	return r.R.URL.RawQuery
}

// Middleware authenticates every request with guard. Rejected requests get
// a JSON error body; accepted ones run next with the identity published in
// the request context.
func Middleware(guard *auth.Guard) transport.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = guard.Serve(r.Context(), r.URL.Path, Request{R: r},
				func(rej auth.Rejection) error {
					transport.WriteRejection(w, rej)
					return nil
				},
				func(ctx context.Context) error {
					next.ServeHTTP(w, r.WithContext(ctx))
					return nil
				},
			)
		})
	}
}

// LoginID returns the login ID authenticated for r, or empty string.
func LoginID(r *http.Request) string {
	return auth.LoginIDFromContext(r.Context())
}

// Token returns the token authenticated for r, or empty string.
func Token(r *http.Request) string {
	return auth.TokenFromContext(r.Context())
}

// WhoAmIResponse describes the caller of the current request.
type WhoAmIResponse struct {
	Authenticated bool           `json:"authenticated"`
	LoginID       string         `json:"login_id,omitempty"`
	Identity      *auth.Identity `json:"identity,omitempty"`
}

// WhoAmI reports the identity published for the current request.
func WhoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := WhoAmIResponse{}
		if ac, ok := auth.FromContext(r.Context()); ok && ac.LoginID != "" {
			resp.Authenticated = true
			resp.LoginID = ac.LoginID
			resp.Identity = ac.Identity
		}
		transport.WriteJSON(w, http.StatusOK, resp)
	})
}
