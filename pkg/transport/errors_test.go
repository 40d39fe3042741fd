package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rhuss/tokengate/pkg/auth"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Code != 404 || body.Message != "not found" {
		t.Errorf("body = %+v, want {404 not found}", body)
	}
}

func TestWriteRejection(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRejection(rec, auth.Rejection{
		Status:  http.StatusUnauthorized,
		Code:    http.StatusUnauthorized,
		Message: auth.AuthErrorMessage,
	})

	want := `{"code":401,"message":"authentication failed"}` + "\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}
