package auth

import (
	"context"
	"fmt"
	"strings"
)

// Decision is the vote a validator casts for a token in a Chain.
type Decision int

const (
	// Abstain means the validator does not recognise the token's format.
	Abstain Decision = iota
	// Yes means the token is valid.
	Yes
	// No means the token is invalid.
	No
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Recognizer is implemented by validators that can tell from the token
// alone whether it is theirs. Validators that do not implement it always
// vote.
type Recognizer interface {
	Recognizes(token string) bool
}

// Chain evaluates validators in order using three-outcome voting. A
// validator whose Recognizer rejects the token abstains; the first one that
// votes decides both validity and identity.
type Chain struct {
	// Validators are evaluated left to right.
	Validators []TokenValidator

	// DefaultDecision is used when all validators abstain.
	// Use Yes for development or No for production.
	DefaultDecision Decision
}

var _ TokenValidator = (*Chain)(nil)

// NewChain returns a chain that rejects tokens no validator recognises.
func NewChain(validators ...TokenValidator) *Chain {
	return &Chain{Validators: validators, DefaultDecision: No}
}

// Decide returns the vote for token and the validator that cast it, which
// is nil when every validator abstained.
func (c *Chain) Decide(ctx context.Context, token string) (Decision, TokenValidator) {
	for _, v := range c.Validators {
		if r, ok := v.(Recognizer); ok && !r.Recognizes(token) {
			continue
		}
		if v.IsValid(ctx, token) {
			return Yes, v
		}
		return No, v
	}
	return c.DefaultDecision, nil
}

func (c *Chain) IsValid(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	d, _ := c.Decide(ctx, token)
	return d == Yes
}

// Resolve asks the validator that decides token. When all validators
// abstain and the default is Yes, the identity is anonymous.
func (c *Chain) Resolve(ctx context.Context, token string) (*Identity, error) {
	d, v := c.Decide(ctx, token)
	switch {
	case d != Yes:
		return nil, fmt.Errorf("%w: token rejected by validator chain", ErrUnauthenticated)
	case v == nil:
		return &Identity{LoginID: "anonymous", ServiceTier: "default"}, nil
	default:
		return v.Resolve(ctx, token)
	}
}

// JWTShaped reports whether token has the three dot-separated, non-empty
// segments of a compact JWT.
func JWTShaped(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
