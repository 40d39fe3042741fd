package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rhuss/tokengate/pkg/auth"
)

type staticValidator map[string]string

func (v staticValidator) IsValid(_ context.Context, token string) bool {
	_, ok := v[token]
	return ok
}

func (v staticValidator) Resolve(_ context.Context, token string) (*auth.Identity, error) {
	return &auth.Identity{LoginID: v[token]}, nil
}

func newTestGuard() *auth.Guard {
	return auth.NewGuard(auth.GuardOptions{
		Policy:    auth.NewPolicyHolder(auth.NewPathAuthPolicy([]string{"/**"}, []string{"/grpc.health.v1.Health/Check"})),
		Validator: staticValidator{"tok-alice": "alice"},
	})
}

func TestRequestAdapter(t *testing.T) {
	req := Request{MD: metadata.Pairs(
		"satoken", "h",
		"cookie", "a=1; satoken=c",
	)}

	v, ok := req.Header("Satoken")
	assert.True(t, ok)
	assert.Equal(t, "h", v)

	v, ok = req.Cookie("satoken")
	assert.True(t, ok)
	assert.Equal(t, "c", v)

	_, ok = req.Cookie("missing")
	assert.False(t, ok)
	assert.Empty(t, req.RawQuery())
}

func TestUnaryInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor(newTestGuard())
	info := &grpc.UnaryServerInfo{FullMethod: "/tokengate.v1.Demo/Get"}

	handler := func(ctx context.Context, req any) (any, error) {
		return auth.LoginIDFromContext(ctx), nil
	}

	_, err := interceptor(context.Background(), nil, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, auth.AuthErrorMessage, status.Convert(err).Message())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer tok-alice"))
	resp, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "alice", resp)
}

func TestUnaryInterceptor_ExcludedMethod(t *testing.T) {
	interceptor := UnaryServerInterceptor(newTestGuard())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestUnaryInterceptor_ClearsAfterHandler(t *testing.T) {
	interceptor := UnaryServerInterceptor(newTestGuard())
	info := &grpc.UnaryServerInfo{FullMethod: "/tokengate.v1.Demo/Get"}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("cookie", "satoken=tok-alice"))

	var amb *auth.AmbientContext
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		amb = auth.AmbientFromContext(ctx)
		return nil, status.Error(codes.Internal, "handler failed")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
	require.NotNil(t, amb)
	_, ok := amb.Get()
	assert.False(t, ok)
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	interceptor := StreamServerInterceptor(newTestGuard())
	info := &grpc.StreamServerInfo{FullMethod: "/tokengate.v1.Demo/Watch"}

	var seen string
	handler := func(srv any, ss grpc.ServerStream) error {
		seen = auth.LoginIDFromContext(ss.Context())
		return nil
	}

	err := interceptor(nil, &fakeStream{ctx: context.Background()}, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("satoken", "tok-alice"))
	require.NoError(t, interceptor(nil, &fakeStream{ctx: ctx}, info, handler))
	assert.Equal(t, "alice", seen)
}

func TestHealthServerOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(ServerOptions(newTestGuard())...)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)

	// Check is excluded from authentication.
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	// List requires a token.
	_, err = client.List(context.Background(), &healthpb.HealthListRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer tok-alice")
	_, err = client.List(ctx, &healthpb.HealthListRequest{})
	assert.NoError(t, err)
}
