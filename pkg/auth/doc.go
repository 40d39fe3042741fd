// Package auth is the decision core of tokengate's path-based authentication.
//
// A request flows through four steps that every host integration shares:
//
//  1. ExtractToken searches the request for a credential in a fixed order:
//     the configured token header, the Authorization header, a cookie,
//     then a query parameter.
//  2. ProcessAuth asks the PathAuthPolicy whether the path needs
//     authentication and checks the token with a TokenValidator.
//  3. The resulting AuthResult decides rejection (ShouldReject).
//  4. Otherwise the identity is published into an AmbientContext bound to
//     the request's context.Context and cleared when the handler returns.
//
// Guard wires the four steps together so host adapters (net/http, echo,
// gRPC) only implement RequestAdapter and a rejection writer.
package auth
