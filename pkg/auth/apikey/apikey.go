// Package apikey provides a token validator backed by a static key list.
// Keys are stored as SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/rhuss/tokengate/pkg/auth"
)

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Validator accepts the configured keys as tokens. It implements
// auth.TokenValidator.
type Validator struct {
	keys []keyEntry
}

var (
	_ auth.TokenValidator = (*Validator)(nil)
	_ auth.Recognizer     = (*Validator)(nil)
)

// New creates a validator from raw keys. Keys are hashed immediately;
// plaintext keys are not stored. Entries with an empty key are skipped.
func New(entries []RawKeyEntry) *Validator {
	v := &Validator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		v.keys = append(v.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: *e.Identity.Clone(),
		})
	}
	return v
}

// Len returns the number of configured keys.
func (v *Validator) Len() int { return len(v.keys) }

// Recognizes abstains from JWT-shaped tokens so a chain can hand them to a
// JWT validator.
func (v *Validator) Recognizes(token string) bool {
	return !auth.JWTShaped(token)
}

// IsValid reports whether token is one of the configured keys.
func (v *Validator) IsValid(_ context.Context, token string) bool {
	_, ok := v.lookup(token)
	return ok
}

// Resolve returns a copy of the identity configured for token.
func (v *Validator) Resolve(_ context.Context, token string) (*auth.Identity, error) {
	e, ok := v.lookup(token)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return e.identity.Clone(), nil
}

// lookup compares against every entry so timing does not reveal the
// position of a match.
func (v *Validator) lookup(token string) (*keyEntry, bool) {
	if token == "" {
		return nil, false
	}
	h := sha256.Sum256([]byte(token))

	var found *keyEntry
	for i := range v.keys {
		if subtle.ConstantTimeCompare(h[:], v.keys[i].hash[:]) == 1 && found == nil {
			found = &v.keys[i]
		}
	}
	return found, found != nil
}
