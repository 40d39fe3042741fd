// Package storage defines the TokenStore interface shared by the token
// backends (memory, redis, postgres) and adapts any store into an
// auth.TokenValidator.
//
// Stores map an opaque token to the identity it was issued for. Tokens may
// carry a TTL; an expired token behaves exactly like an unknown one.
package storage
