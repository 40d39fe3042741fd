// Package transport provides the net/http middleware shared by tokengate's
// host adapters: panic recovery, request ID assignment (X-Request-ID),
// structured access logging via log/slog, and JSON error bodies.
//
// Host-specific authentication adapters live in subpackages:
//
//   - transport/http wraps net/http handlers
//   - transport/echo provides echo middleware
//   - transport/grpc provides unary and stream server interceptors
//
// Each adapter implements only auth.RequestAdapter and the rejection
// response; the decision itself is made by auth.Guard.
package transport
