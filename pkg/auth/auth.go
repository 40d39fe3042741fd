package auth

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/rhuss/tokengate/pkg/debug"
)

// Identity represents an authenticated caller resolved from a token.
type Identity struct {
	// LoginID is the unique identifier of the logged-in account (required, non-empty).
	LoginID string `json:"login_id"`

	// ServiceTier determines rate limits.
	ServiceTier string `json:"service_tier,omitempty"`

	// Scopes lists the authorization scopes granted.
	Scopes []string `json:"scopes,omitempty"`

	// Metadata carries validator-specific data. The key "tenant_id" is
	// recognised by TenantID.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TenantID returns the tenant identifier from metadata, or empty string.
func (id *Identity) TenantID() string {
	if id == nil || id.Metadata == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// Clone returns a deep copy. Identities handed out by the pipeline are
// always copies so handlers cannot mutate validator state.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	c := *id
	c.Scopes = slices.Clone(id.Scopes)
	c.Metadata = maps.Clone(id.Metadata)
	return &c
}

// TokenValidator checks tokens and resolves their identity. Implementations
// must be safe for concurrent use.
type TokenValidator interface {
	// IsValid reports whether token is known and not expired.
	IsValid(ctx context.Context, token string) bool

	// Resolve returns the identity behind a valid token.
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// Sentinel errors.
var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrTooManyRequests  = errors.New("rate limit exceeded")
	ErrAlreadyPublished = errors.New("auth context already published")
	ErrCleared          = errors.New("auth context already cleared")
)

// Reason records why a request was not (fully) authenticated. It is
// informational: every reason maps to the same 401 at the boundary.
type Reason int

const (
	// ReasonNone means the token was valid, or no token check applied.
	ReasonNone Reason = iota

	// ReasonMissingCredential means no token was found in the request.
	ReasonMissingCredential

	// ReasonInvalidCredential means the validator rejected the token.
	ReasonInvalidCredential

	// ReasonIdentityUnresolved means the token was valid but its identity
	// could not be resolved.
	ReasonIdentityUnresolved

	// ReasonPolicyRejected means the login ID validator refused the identity.
	ReasonPolicyRejected
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMissingCredential:
		return "missing_credential"
	case ReasonInvalidCredential:
		return "invalid_credential"
	case ReasonIdentityUnresolved:
		return "identity_unresolved"
	case ReasonPolicyRejected:
		return "policy_rejected"
	default:
		return "unknown"
	}
}

// AuthResult is the per-request authentication decision.
type AuthResult struct {
	// NeedAuth reports whether the policy requires authentication for the path.
	NeedAuth bool

	// Token is the extracted token, empty when none was presented.
	Token string

	// Identity is set only for a valid token whose identity was resolved.
	Identity *Identity

	// Valid is the final validity after identity and policy checks.
	Valid bool

	// Reason explains a missing or failed authentication.
	Reason Reason
}

// ShouldReject reports whether the request must be refused.
func (r AuthResult) ShouldReject() bool {
	return r.NeedAuth && (!r.Valid || r.Token == "")
}

// LoginID returns the resolved login ID, if any.
func (r AuthResult) LoginID() (string, bool) {
	if r.Identity == nil {
		return "", false
	}
	return r.Identity.LoginID, true
}

// ProcessAuth decides authentication for one request.
//
// An empty token counts as no token. Validator failures never surface as
// errors: an identity that cannot be resolved is dropped, which turns into a
// rejection only when the path requires authentication. The policy's login
// ID validator is consulted only for paths that require authentication.
func ProcessAuth(ctx context.Context, path, token string, policy *PathAuthPolicy, validator TokenValidator) AuthResult {
	result := AuthResult{
		NeedAuth: policy.Check(path),
		Token:    token,
	}

	if token == "" {
		result.Reason = ReasonMissingCredential
		return result
	}

	rawValid := validator.IsValid(ctx, token)
	if !rawValid {
		result.Reason = ReasonInvalidCredential
		return result
	}

	id, err := validator.Resolve(ctx, token)
	if err != nil {
		debug.Log("auth", "identity resolution failed", "path", path, "error", err)
		id = nil
	}
	result.Identity = id.Clone()

	if !result.NeedAuth {
		result.Valid = true
		if result.Identity == nil {
			result.Reason = ReasonIdentityUnresolved
		}
		return result
	}

	switch {
	case result.Identity == nil:
		result.Reason = ReasonIdentityUnresolved
	case !policy.ValidateLoginID(result.Identity.LoginID):
		result.Reason = ReasonPolicyRejected
	default:
		result.Valid = true
	}
	return result
}
