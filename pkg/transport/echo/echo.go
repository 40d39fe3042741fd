// Package echo adapts the tokengate authentication pipeline to the echo
// web framework.
package echo

import (
	"context"
	"net/http"

	echolib "github.com/labstack/echo/v4"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/transport"
)

// Context keys set on echo.Context for authenticated requests.
const (
	LoginIDKey = "login_id"
	TokenKey   = "token"
)

// Request exposes an echo.Context as an auth.RequestAdapter.
type Request struct {
	C echolib.Context
}

var _ auth.RequestAdapter = Request{}

func (r Request) Header(name string) (string, bool) {
	vals := r.C.Request().Header.Values(name)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (r Request) Cookie(name string) (string, bool) {
	c, err := r.C.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (r Request) RawQuery() string {
	return r.C.QueryString()
}

// Middleware authenticates requests with guard. Accepted requests carry the
// identity in the request context and, for convenience, the login ID and
// token under LoginIDKey and TokenKey.
func Middleware(guard *auth.Guard) echolib.MiddlewareFunc {
	return func(next echolib.HandlerFunc) echolib.HandlerFunc {
		return func(c echolib.Context) error {
			req := c.Request()
			return guard.Serve(req.Context(), req.URL.Path, Request{C: c},
				func(rej auth.Rejection) error {
					return c.JSON(rej.Status, transport.ErrorBody{Code: rej.Code, Message: rej.Message})
				},
				func(ctx context.Context) error {
					c.SetRequest(req.WithContext(ctx))
					if ac, ok := auth.FromContext(ctx); ok && ac.LoginID != "" {
						c.Set(LoginIDKey, ac.LoginID)
						c.Set(TokenKey, ac.Token)
					}
					return next(c)
				},
			)
		}
	}
}

// LoginID returns the login ID stored by Middleware, or empty string.
func LoginID(c echolib.Context) string {
	s, _ := c.Get(LoginIDKey).(string)
	return s
}

// WhoAmI reports the identity published for the current request.
func WhoAmI(c echolib.Context) error {
	ac, ok := auth.FromContext(c.Request().Context())
	if !ok || ac.LoginID == "" {
		return c.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"login_id":      ac.LoginID,
		"identity":      ac.Identity,
	})
}

// New returns an echo instance with the tokengate middleware stack:
// panic recovery, request IDs, then authentication.
func New(guard *auth.Guard) *echolib.Echo {
	e := echolib.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echolib.WrapMiddleware(transport.Recovery(nil)))
	e.Use(echolib.WrapMiddleware(transport.RequestID()))
	e.Use(Middleware(guard))
	return e
}
