package auth

import (
	"regexp"
	"slices"
	"sync/atomic"
)

// LoginIDValidator is a deployment hook that accepts or rejects a resolved
// login ID independently of token validity, e.g. to restrict a tenant or
// enforce an ID format.
type LoginIDValidator interface {
	ValidateLoginID(loginID string) bool
}

// LoginIDValidatorFunc adapts a plain function to LoginIDValidator.
type LoginIDValidatorFunc func(loginID string) bool

func (f LoginIDValidatorFunc) ValidateLoginID(loginID string) bool {
	return f(loginID)
}

type allowAnyLoginID struct{}

func (allowAnyLoginID) ValidateLoginID(string) bool { return true }

// AllowAnyLoginID accepts every login ID. It is the default validator of a
// PathAuthPolicy.
var AllowAnyLoginID LoginIDValidator = allowAnyLoginID{}

// PatternLoginIDValidator accepts login IDs matching re.
func PatternLoginIDValidator(re *regexp.Regexp) LoginIDValidator {
	return LoginIDValidatorFunc(re.MatchString)
}

// PathAuthPolicy decides which request paths require authentication.
// It is immutable after construction and safe for concurrent use.
type PathAuthPolicy struct {
	include   []string
	exclude   []string
	validator LoginIDValidator
}

// PolicyOption configures a PathAuthPolicy.
type PolicyOption func(*PathAuthPolicy)

// WithLoginIDValidator sets the login ID validator. A nil validator keeps
// the allow-all default.
func WithLoginIDValidator(v LoginIDValidator) PolicyOption {
	return func(p *PathAuthPolicy) {
		if v != nil {
			p.validator = v
		}
	}
}

// NewPathAuthPolicy creates a policy from include and exclude patterns.
// The slices are copied.
func NewPathAuthPolicy(include, exclude []string, opts ...PolicyOption) *PathAuthPolicy {
	p := &PathAuthPolicy{
		include:   slices.Clone(include),
		exclude:   slices.Clone(exclude),
		validator: AllowAnyLoginID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OptionalPolicy requires authentication nowhere. Valid tokens still
// produce a published identity.
func OptionalPolicy() *PathAuthPolicy {
	return NewPathAuthPolicy(nil, nil)
}

// RequireLoginPolicy requires a valid login on every path.
func RequireLoginPolicy(opts ...PolicyOption) *PathAuthPolicy {
	return NewPathAuthPolicy([]string{"/**"}, nil, opts...)
}

// Check reports whether path requires authentication.
func (p *PathAuthPolicy) Check(path string) bool {
	return NeedAuth(path, p.include, p.exclude)
}

// ValidateLoginID runs the configured login ID validator.
func (p *PathAuthPolicy) ValidateLoginID(loginID string) bool {
	return p.validator.ValidateLoginID(loginID)
}

// Include returns a copy of the include patterns.
func (p *PathAuthPolicy) Include() []string { return slices.Clone(p.include) }

// Exclude returns a copy of the exclude patterns.
func (p *PathAuthPolicy) Exclude() []string { return slices.Clone(p.exclude) }

// PolicyHolder holds the current policy and lets a configuration reload
// swap it without blocking readers.
type PolicyHolder struct {
	current atomic.Pointer[PathAuthPolicy]
}

// NewPolicyHolder returns a holder initialised with p, or OptionalPolicy
// when p is nil.
func NewPolicyHolder(p *PathAuthPolicy) *PolicyHolder {
	h := &PolicyHolder{}
	h.Store(p)
	return h
}

// Load returns the current policy.
func (h *PolicyHolder) Load() *PathAuthPolicy {
	return h.current.Load()
}

// Store replaces the current policy. A nil policy is replaced by
// OptionalPolicy.
func (h *PolicyHolder) Store(p *PathAuthPolicy) {
	if p == nil {
		p = OptionalPolicy()
	}
	h.current.Store(p)
}
