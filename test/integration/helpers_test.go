// Package integration provides end-to-end tests for the tokengate HTTP
// stack.
//
// Tests run against a real tokengate server validating JWTs issued by a
// mock identity provider, both started in-process using net/http/httptest.
package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/auth/jwt"
	"github.com/rhuss/tokengate/pkg/auth/jwt/jwttest"
	"github.com/rhuss/tokengate/pkg/transport"
	transporthttp "github.com/rhuss/tokengate/pkg/transport/http"
)

const (
	testIssuer   = "https://idp.integration.test"
	testAudience = "tokengate"
)

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the tokengate server and the mock identity provider.
type TestEnvironment struct {
	Server *httptest.Server
	IDP    *httptest.Server
	Issuer *jwttest.Issuer
}

// TestMain starts the identity provider and tokengate server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

func setupTestEnvironment() *TestEnvironment {
	iss, err := jwttest.NewIssuer(testIssuer, testAudience)
	if err != nil {
		panic(fmt.Sprintf("creating issuer: %v", err))
	}
	idp := httptest.NewServer(iss.JWKSHandler())

	validator := jwt.New(jwt.Config{
		Issuer:   testIssuer,
		Audience: testAudience,
		JWKSURL:  idp.URL,
		CacheTTL: time.Hour,
	})

	policy := auth.NewPathAuthPolicy(
		[]string{"/api/**"},
		[]string{"/api/public/**"},
		auth.WithLoginIDValidator(auth.PatternLoginIDValidator(regexp.MustCompile(`^[a-z][a-z0-9-]*$`))),
	)

	guard := auth.NewGuard(auth.GuardOptions{
		Policy:        auth.NewPolicyHolder(policy),
		Validator:     validator,
		ValidatorName: "jwt",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("GET /api/whoami", transporthttp.WhoAmI())
	mux.Handle("GET /api/public/whoami", transporthttp.WhoAmI())
	mux.HandleFunc("GET /api/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("handler failure")
	})
	mux.HandleFunc("GET /api/fanout", handleFanout)

	srv := transporthttp.NewServer(transporthttp.Middleware(guard)(mux))

	return &TestEnvironment{
		Server: httptest.NewServer(srv.Handler()),
		IDP:    idp,
		Issuer: iss,
	}
}

// handleFanout reads the login ID from several goroutines spawned by the
// handler and reports what each saw.
func handleFanout(w http.ResponseWriter, r *http.Request) {
	const workers = 8
	seen := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen[i] = auth.LoginIDFromContext(r.Context())
		}()
	}
	wg.Wait()
	transport.WriteJSON(w, http.StatusOK, map[string]any{"seen": seen})
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.Server != nil {
		env.Server.Close()
	}
	if env.IDP != nil {
		env.IDP.Close()
	}
}

// BaseURL returns the tokengate server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.Server.URL
}

// --- Token helpers ---

func issueToken(t *testing.T, subject string, extra map[string]any) string {
	t.Helper()
	token, err := testEnv.Issuer.Token(subject, time.Hour, extra)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

// --- HTTP helpers ---

// getURL sends a GET request and returns the response.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	return getWith(t, url, nil)
}

// getWith sends a GET request after letting prepare decorate it.
func getWith(t *testing.T, url string, prepare func(*http.Request)) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if prepare != nil {
		prepare(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}
