package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	echolib "github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/config"
	"github.com/rhuss/tokengate/pkg/observability"
	"github.com/rhuss/tokengate/pkg/storage"
	"github.com/rhuss/tokengate/pkg/transport"
	transportecho "github.com/rhuss/tokengate/pkg/transport/echo"
	transportgrpc "github.com/rhuss/tokengate/pkg/transport/grpc"
	transporthttp "github.com/rhuss/tokengate/pkg/transport/http"
)

const readinessTimeout = 2 * time.Second

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, path)
		},
	}
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	validator, store, err := buildValidator(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	guard, err := newGuard(cfg, validator)
	if err != nil {
		return err
	}

	srv := transporthttp.NewServer(newHandler(cfg, guard, store),
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	slog.Info("tokengate starting",
		"port", cfg.Server.Port,
		"framework", cfg.Server.Framework,
		"validators", cfg.Auth.ValidatorNames(),
		"mode", cfg.Auth.Mode,
		"token_name", guard.TokenName(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Server.GRPCPort > 0 {
		g.Go(func() error { return serveGRPC(ctx, fmt.Sprintf(":%d", cfg.Server.GRPCPort), guard) })
	}

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, configPath, func(next *config.Config, err error) {
				reloadPolicy(guard.Policy(), next, err)
			})
		})
	}

	return g.Wait()
}

// reloadPolicy swaps in the path policy of a reloaded configuration. Other
// settings take effect on restart.
func reloadPolicy(holder *auth.PolicyHolder, next *config.Config, err error) {
	if err == nil {
		var p *auth.PathAuthPolicy
		if p, err = next.Auth.Policy(); err == nil {
			holder.Store(p)
			observability.PolicyReloadsTotal.WithLabelValues("success").Inc()
			slog.Info("policy reloaded",
				"mode", next.Auth.Mode,
				"include", p.Include(),
				"exclude", p.Exclude(),
			)
			return
		}
	}
	observability.PolicyReloadsTotal.WithLabelValues("error").Inc()
	slog.Warn("policy reload failed, keeping previous policy", "error", err)
}

// newHandler builds the HTTP surface for the configured framework. Every
// route runs behind the guard; the default policy excludes the probes and
// the metrics endpoint.
func newHandler(cfg *config.Config, guard *auth.Guard, store storage.TokenStore) http.Handler {
	ready := readiness(store)

	if cfg.Server.Framework == "echo" {
		e := transportecho.New(guard)
		e.GET("/healthz", func(c echolib.Context) error { return c.String(http.StatusOK, "ok\n") })
		e.GET("/readyz", echolib.WrapHandler(ready))
		if cfg.Observability.Metrics.Enabled {
			e.GET(cfg.Observability.Metrics.Path, echolib.WrapHandler(observability.Handler()))
		}
		e.GET("/api/whoami", transportecho.WhoAmI)
		return e
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("GET /readyz", ready)
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, observability.Handler())
	}
	mux.Handle("GET /api/whoami", transporthttp.WhoAmI())
	return transporthttp.Middleware(guard)(mux)
}

// readiness reports 503 while the token store is unreachable.
func readiness(store storage.TokenStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := store.HealthCheck(ctx); err != nil {
				slog.Warn("readiness check failed", "error", err)
				transport.WriteError(w, http.StatusServiceUnavailable, "token store unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
}

// serveGRPC runs a gRPC server exposing the health service behind the
// authentication interceptors until ctx is done.
func serveGRPC(ctx context.Context, addr string, guard *auth.Guard) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(transportgrpc.ServerOptions(guard)...)
	healthpb.RegisterHealthServer(srv, health.NewServer())

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	slog.Info("grpc server starting", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
