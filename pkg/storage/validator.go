package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/debug"
)

// Validator adapts a TokenStore to auth.TokenValidator. A token is valid
// while the store can load it.
type Validator struct {
	store TokenStore
}

var _ auth.TokenValidator = (*Validator)(nil)

// NewValidator wraps store.
func NewValidator(store TokenStore) *Validator {
	return &Validator{store: store}
}

// IsValid reports whether the store knows token. Backend failures count
// as invalid.
func (v *Validator) IsValid(ctx context.Context, token string) bool {
	_, err := v.store.Load(ctx, token)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound):
		debug.Log("storage", "token not found", "token", debug.Truncate(token, 8))
	default:
		slog.Warn("token lookup failed", "error", err)
	}
	return false
}

// Resolve loads the identity stored for token.
func (v *Validator) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	return v.store.Load(ctx, token)
}
