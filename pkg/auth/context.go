package auth

import (
	"context"
	"sync/atomic"
)

// AuthContext is the identity state published for one request.
type AuthContext struct {
	Token    string
	LoginID  string
	Identity *Identity
}

// NewAuthContext builds the published state from a result. It is empty
// unless the result carries both a token and a resolved identity.
func NewAuthContext(r AuthResult) AuthContext {
	if r.Token == "" || r.Identity == nil {
		return AuthContext{}
	}
	return AuthContext{
		Token:    r.Token,
		LoginID:  r.Identity.LoginID,
		Identity: r.Identity.Clone(),
	}
}

// slotState is what an AmbientContext points to at any moment.
type slotState struct {
	ac      AuthContext
	set     bool
	cleared bool
}

var emptySlot = &slotState{}

// AmbientContext is the request-scoped identity slot. It lives in the
// request's context.Context, so it follows the request wherever its
// goroutines run and is never visible to another request.
//
// Lifecycle: empty after Begin, published at most once, cleared by Clear.
// Reads are lock-free and safe from goroutines the handler spawns.
type AmbientContext struct {
	state atomic.Pointer[slotState]
}

type ambientKey struct{}

// Begin attaches a fresh, empty AmbientContext to ctx. The caller must
// Clear it when the request ends, typically with defer.
func Begin(ctx context.Context) (context.Context, *AmbientContext) {
	ac := &AmbientContext{}
	ac.state.Store(emptySlot)
	return context.WithValue(ctx, ambientKey{}, ac), ac
}

// Publish stores the request's identity state. It fails if state was
// already published or the slot was cleared.
func (a *AmbientContext) Publish(ac AuthContext) error {
	next := &slotState{ac: ac, set: true}
	for {
		cur := a.state.Load()
		if cur.cleared {
			return ErrCleared
		}
		if cur.set {
			return ErrAlreadyPublished
		}
		if a.state.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Clear empties the slot for good. It is safe to call more than once.
func (a *AmbientContext) Clear() {
	a.state.Store(&slotState{cleared: true})
}

// Get returns the published state, if any.
func (a *AmbientContext) Get() (AuthContext, bool) {
	s := a.state.Load()
	if !s.set || s.cleared {
		return AuthContext{}, false
	}
	return s.ac, true
}

// AmbientFromContext returns the slot attached by Begin, or nil.
func AmbientFromContext(ctx context.Context) *AmbientContext {
	if v, ok := ctx.Value(ambientKey{}).(*AmbientContext); ok {
		return v
	}
	return nil
}

// FromContext returns the identity state published for the current request.
func FromContext(ctx context.Context) (AuthContext, bool) {
	a := AmbientFromContext(ctx)
	if a == nil {
		return AuthContext{}, false
	}
	return a.Get()
}

// IdentityFromContext retrieves a copy of the authenticated identity.
// Returns nil if none is published.
func IdentityFromContext(ctx context.Context) *Identity {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.Identity.Clone()
}

// LoginIDFromContext returns the authenticated login ID, or empty string.
func LoginIDFromContext(ctx context.Context) string {
	ac, _ := FromContext(ctx)
	return ac.LoginID
}

// TokenFromContext returns the token of the authenticated request, or empty string.
func TokenFromContext(ctx context.Context) string {
	ac, _ := FromContext(ctx)
	return ac.Token
}
