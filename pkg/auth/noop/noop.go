// Package noop provides a validator that accepts any non-empty token.
// Used for development.
package noop

import (
	"context"

	"github.com/rhuss/tokengate/pkg/auth"
)

// AnonymousLoginID is the login ID of every identity this validator resolves.
const AnonymousLoginID = "anonymous"

// Validator treats every non-empty token as valid and resolves it to an
// anonymous identity.
type Validator struct{}

var _ auth.TokenValidator = Validator{}

func (Validator) IsValid(_ context.Context, token string) bool {
	return token != ""
}

func (Validator) Resolve(_ context.Context, _ string) (*auth.Identity, error) {
	return &auth.Identity{
		LoginID:     AnonymousLoginID,
		ServiceTier: "default",
	}, nil
}
