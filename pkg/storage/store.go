package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rhuss/tokengate/pkg/auth"
)

// TokenStore persists token to identity mappings.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	// Save stores identity under token. A ttl of zero means no expiry.
	// Returns ErrConflict if token is already stored.
	Save(ctx context.Context, token string, identity *auth.Identity, ttl time.Duration) error

	// Load returns the identity for token, or ErrNotFound.
	Load(ctx context.Context, token string) (*auth.Identity, error)

	// Delete revokes token. Returns ErrNotFound if it was not stored.
	Delete(ctx context.Context, token string) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NewToken returns a fresh random token value.
func NewToken() string {
	return uuid.NewString()
}

// Issue creates a new token for identity and stores it.
func Issue(ctx context.Context, s TokenStore, identity *auth.Identity, ttl time.Duration) (string, error) {
	if identity == nil || identity.LoginID == "" {
		return "", errors.New("identity with a login ID is required")
	}
	token := NewToken()
	if err := s.Save(ctx, token, identity, ttl); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	return token, nil
}

// MarshalIdentity encodes an identity for backends that store bytes.
func MarshalIdentity(id *auth.Identity) ([]byte, error) {
	return json.Marshal(id)
}

// UnmarshalIdentity decodes an identity written by MarshalIdentity.
func UnmarshalIdentity(data []byte) (*auth.Identity, error) {
	var id auth.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	if id.LoginID == "" {
		return nil, errors.New("decoding identity: empty login ID")
	}
	return &id, nil
}
