// Package grpc adapts the tokengate authentication pipeline to gRPC servers
// through unary and stream interceptors.
//
// Request metadata plays the role of HTTP headers and the "cookie" metadata
// key is parsed for cookies. gRPC has no query string, so the query tier of
// extraction never matches. The full method name ("/pkg.Service/Method") is
// the path matched against the policy.
package grpc

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rhuss/tokengate/pkg/auth"
)

const cookieMetadataKey = "cookie"

// Request exposes incoming gRPC metadata as an auth.RequestAdapter.
type Request struct {
	MD metadata.MD
}

var _ auth.RequestAdapter = Request{}

func (r Request) Header(name string) (string, bool) {
	vals := r.MD.Get(name)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (r Request) Cookie(name string) (string, bool) {
	for _, line := range r.MD.Get(cookieMetadataKey) {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == name {
				return c.Value, true
			}
		}
	}
	return "", false
}

func (r Request) RawQuery() string { return "" }

func requestFromContext(ctx context.Context) Request {
	md, _ := metadata.FromIncomingContext(ctx)
	return Request{MD: md}
}

// rejectionError maps a rejection to a gRPC status.
func rejectionError(rej auth.Rejection) error {
	code := codes.Unauthenticated
	if rej.Status == http.StatusTooManyRequests {
		code = codes.ResourceExhausted
	}
	return status.Error(code, rej.Message)
}

// UnaryServerInterceptor authenticates unary calls with guard.
func UnaryServerInterceptor(guard *auth.Guard) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var resp any
		err := guard.Serve(ctx, info.FullMethod, requestFromContext(ctx),
			rejectionError,
			func(ctx context.Context) error {
				var err error
				resp, err = handler(ctx, req)
				return err
			},
		)
		return resp, err
	}
}

// StreamServerInterceptor authenticates streaming calls with guard. The
// identity stays published for the lifetime of the stream handler.
func StreamServerInterceptor(guard *auth.Guard) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		return guard.Serve(ctx, info.FullMethod, requestFromContext(ctx),
			rejectionError,
			func(ctx context.Context) error {
				return handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
			},
		)
	}
}

// serverStream overrides the context of a wrapped stream.
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context { return s.ctx }

// ServerOptions returns the interceptor options for grpc.NewServer.
func ServerOptions(guard *auth.Guard) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(guard)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(guard)),
	}
}
