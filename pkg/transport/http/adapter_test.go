package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rhuss/tokengate/pkg/auth"
)

// staticValidator accepts the tokens in its map.
type staticValidator map[string]string

func (v staticValidator) IsValid(_ context.Context, token string) bool {
	_, ok := v[token]
	return ok
}

func (v staticValidator) Resolve(_ context.Context, token string) (*auth.Identity, error) {
	loginID, ok := v[token]
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.Identity{LoginID: loginID}, nil
}

func newTestGuard(include, exclude []string) *auth.Guard {
	return auth.NewGuard(auth.GuardOptions{
		Policy:    auth.NewPolicyHolder(auth.NewPathAuthPolicy(include, exclude)),
		Validator: staticValidator{"tok-alice": "alice", "tok-bob": "bob"},
	})
}

func TestRequestAdapter(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?satoken=q%20v&other=1", nil)
	r.Header.Set("Satoken", "h")
	r.AddCookie(&http.Cookie{Name: "satoken", Value: "c"})
	req := Request{R: r}

	if v, ok := req.Header("satoken"); !ok || v != "h" {
		t.Errorf("Header = %q, %v, want %q, true", v, ok, "h")
	}
	if _, ok := req.Header("X-Missing"); ok {
		t.Error("missing header reported as present")
	}
	if v, ok := req.Cookie("satoken"); !ok || v != "c" {
		t.Errorf("Cookie = %q, %v, want %q, true", v, ok, "c")
	}
	if got := req.RawQuery(); got != "satoken=q%20v&other=1" {
		t.Errorf("RawQuery = %q", got)
	}
}

func TestMiddleware_RejectsWith401JSON(t *testing.T) {
	h := Middleware(newTestGuard([]string{"/api/**"}, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/user", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	want := `{"code":401,"message":"authentication failed"}` + "\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestMiddleware_PublishesIdentity(t *testing.T) {
	var amb *auth.AmbientContext
	h := Middleware(newTestGuard([]string{"/api/**"}, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		amb = auth.AmbientFromContext(r.Context())
		if got := LoginID(r); got != "alice" {
			t.Errorf("LoginID = %q, want %q", got, "alice")
		}
		if got := Token(r); got != "tok-alice" {
			t.Errorf("Token = %q, want %q", got, "tok-alice")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/api/user", nil)
	req.Header.Set("Authorization", "Bearer tok-alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := amb.Get(); ok {
		t.Error("ambient context should be cleared after the handler returns")
	}
}

func TestMiddleware_ClearsAfterPanic(t *testing.T) {
	var amb *auth.AmbientContext
	h := Middleware(newTestGuard([]string{"/**"}, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		amb = auth.AmbientFromContext(r.Context())
		panic("handler exploded")
	}))

	req := httptest.NewRequest("GET", "/x?satoken=tok-bob", nil)
	func() {
		defer func() { _ = recover() }()
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()

	if amb == nil {
		t.Fatal("handler did not run")
	}
	if _, ok := amb.Get(); ok {
		t.Error("ambient context should be cleared after a panic")
	}
}

func TestMiddleware_ExcludedPathPassesWithoutToken(t *testing.T) {
	ran := false
	h := Middleware(newTestGuard([]string{"/api/**"}, []string{"/api/login"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/login", nil))
	if !ran {
		t.Error("excluded path should reach the handler")
	}
}

func TestWhoAmI(t *testing.T) {
	h := Middleware(newTestGuard(nil, nil))(WhoAmI())

	req := httptest.NewRequest("GET", "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultTokenName, Value: "tok-bob"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp WhoAmIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !resp.Authenticated || resp.LoginID != "bob" {
		t.Errorf("whoami = %+v, want authenticated bob", resp)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/whoami", nil))
	resp = WhoAmIResponse{}
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Authenticated {
		t.Error("anonymous request reported as authenticated")
	}
}
