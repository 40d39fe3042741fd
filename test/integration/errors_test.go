package integration

import (
	"net/http"
	"testing"
)

func TestHandlerPanicReturns500(t *testing.T) {
	token := issueToken(t, "erin", nil)
	resp := getWith(t, testEnv.BaseURL()+"/api/panic", func(r *http.Request) {
		r.Header.Set("satoken", token)
	})

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	decodeJSON(t, resp, &body)
	if body.Code != 500 {
		t.Errorf("body.code = %d, want 500", body.Code)
	}
}

func TestNoIdentityLeaksAfterPanic(t *testing.T) {
	token := issueToken(t, "frank", nil)
	resp := getWith(t, testEnv.BaseURL()+"/api/panic", func(r *http.Request) {
		r.Header.Set("satoken", token)
	})
	resp.Body.Close()

	// An anonymous request afterwards must not see frank.
	_, body := whoami(t, "/api/public/whoami", nil)
	if body.Authenticated || body.LoginID != "" {
		t.Errorf("anonymous request after panic saw %+v", body)
	}
}

func TestUnknownRouteUnderProtectedPrefix(t *testing.T) {
	// Authentication runs before routing, so an anonymous caller cannot
	// probe which protected routes exist.
	resp := getURL(t, testEnv.BaseURL()+"/api/does-not-exist")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	token := issueToken(t, "grace", nil)
	resp = getWith(t, testEnv.BaseURL()+"/api/does-not-exist", func(r *http.Request) {
		r.Header.Set("satoken", token)
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
