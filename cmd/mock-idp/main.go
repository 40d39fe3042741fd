// Command mock-idp runs a minimal identity provider for trying out
// validator=jwt. It publishes a JWKS and signs tokens on request.
//
//	GET /.well-known/jwks.json          public key set
//	GET /token?sub=alice&tier=premium   {"access_token": "...", "token_type": "Bearer"}
//
// Configuration:
//
//	MOCK_PORT     - Listen port (default: 9090)
//	MOCK_ISSUER   - iss claim (optional)
//	MOCK_AUDIENCE - aud claim (optional)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/tokengate/pkg/auth/jwt/jwttest"
	"github.com/rhuss/tokengate/pkg/transport"
)

const defaultTTL = time.Hour

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	iss, err := jwttest.NewIssuer(os.Getenv("MOCK_ISSUER"), os.Getenv("MOCK_AUDIENCE"))
	if err != nil {
		slog.Error("creating issuer", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: ":" + port, Handler: newMux(iss)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock idp starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock idp failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock idp shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newMux(iss *jwttest.Issuer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /.well-known/jwks.json", iss.JWKSHandler())
	mux.HandleFunc("GET /token", handleToken(iss))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleToken signs a token for the sub query parameter. tier, tenant_id
// and scope are copied into claims when present; ttl is a Go duration.
func handleToken(iss *jwttest.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sub := q.Get("sub")
		if sub == "" {
			transport.WriteError(w, http.StatusBadRequest, "sub is required")
			return
		}

		ttl := defaultTTL
		if v := q.Get("ttl"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				transport.WriteError(w, http.StatusBadRequest, "invalid ttl")
				return
			}
			ttl = d
		}

		extra := map[string]any{}
		for _, name := range []string{"tier", "tenant_id", "scope"} {
			if v := q.Get(name); v != "" {
				extra[name] = v
			}
		}

		token, err := iss.Token(sub, ttl, extra)
		if err != nil {
			slog.Error("signing token", "error", err)
			transport.WriteError(w, http.StatusInternalServerError, "signing failed")
			return
		}

		transport.WriteJSON(w, http.StatusOK, tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int(ttl.Seconds()),
		})
	}
}
