package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/tokengate/pkg/debug"
	"github.com/rhuss/tokengate/pkg/observability"
)

// DefaultTokenName is the header, cookie, and query key searched when no
// token name is configured.
const DefaultTokenName = "satoken"

// AuthErrorMessage is the message of every authentication rejection.
const AuthErrorMessage = "authentication failed"

// Rejection describes the response a host adapter writes when a request is
// refused. Body renders as {"code":<Code>,"message":<Message>}.
type Rejection struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	// TokenName is the header, cookie, and query key. Default: "satoken".
	TokenName string

	// Policy decides which paths require authentication. A nil Policy
	// means no path does (identity is still published for valid tokens).
	Policy *PolicyHolder

	// Validator checks tokens. Required.
	Validator TokenValidator

	// ValidatorName labels metrics. Default: "default".
	ValidatorName string

	// Limiter is optional.
	Limiter RateLimiter

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Guard runs the shared authentication pipeline for every host adapter.
type Guard struct {
	tokenName     string
	policy        *PolicyHolder
	validator     TokenValidator
	validatorName string
	limiter       RateLimiter
	logger        *slog.Logger
}

// NewGuard creates a Guard. It panics if no validator is given, since a
// guard without one cannot make any decision.
func NewGuard(opts GuardOptions) *Guard {
	if opts.Validator == nil {
		panic("auth: NewGuard requires a TokenValidator")
	}
	if opts.TokenName == "" {
		opts.TokenName = DefaultTokenName
	}
	if opts.Policy == nil {
		opts.Policy = NewPolicyHolder(nil)
	}
	if opts.ValidatorName == "" {
		opts.ValidatorName = "default"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Guard{
		tokenName:     opts.TokenName,
		policy:        opts.Policy,
		validator:     opts.Validator,
		validatorName: opts.ValidatorName,
		limiter:       opts.Limiter,
		logger:        opts.Logger,
	}
}

// TokenName returns the configured token key.
func (g *Guard) TokenName() string { return g.tokenName }

// Policy returns the policy holder, e.g. for hot reload.
func (g *Guard) Policy() *PolicyHolder { return g.policy }

// Authenticate extracts the token from req and runs ProcessAuth.
func (g *Guard) Authenticate(ctx context.Context, path string, req RequestAdapter) AuthResult {
	cred, found := ExtractToken(req, g.tokenName)
	if found {
		debug.Log("extract", "token found", "source", cred.Source.String(), "token", debug.Truncate(cred.Token, 8))
	} else {
		debug.Log("extract", "no token in request", "path", path, "token_name", g.tokenName)
	}

	start := time.Now()
	result := ProcessAuth(ctx, path, cred.Token, g.policy.Load(), g.validator)
	if cred.Token != "" {
		observability.ValidationDuration.WithLabelValues(g.validatorName).Observe(time.Since(start).Seconds())
	}

	outcome := "allowed"
	if result.ShouldReject() {
		outcome = "rejected"
	}
	observability.AuthDecisionsTotal.WithLabelValues(outcome, result.Reason.String(), cred.Source.String()).Inc()
	return result
}

// Serve authenticates the request and either calls reject or runs next with
// the identity published in the request's AmbientContext. The context is
// cleared when next returns or panics.
func (g *Guard) Serve(ctx context.Context, path string, req RequestAdapter, reject func(Rejection) error, next func(context.Context) error) error {
	result := g.Authenticate(ctx, path, req)

	if result.ShouldReject() {
		g.logger.Warn("authentication failed",
			"path", path,
			"reason", result.Reason.String(),
		)
		return reject(Rejection{
			Status:  http.StatusUnauthorized,
			Code:    http.StatusUnauthorized,
			Message: AuthErrorMessage,
			Err:     ErrUnauthenticated,
		})
	}

	if g.limiter != nil && result.Identity != nil {
		if err := g.limiter.Allow(ctx, result.Identity); err != nil {
			g.logger.Warn("rate limit exceeded",
				"login_id", result.Identity.LoginID,
				"tier", result.Identity.ServiceTier,
			)
			tier := result.Identity.ServiceTier
			if tier == "" {
				tier = "default"
			}
			observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
			return reject(Rejection{
				Status:  http.StatusTooManyRequests,
				Code:    http.StatusTooManyRequests,
				Message: ErrTooManyRequests.Error(),
				Err:     ErrTooManyRequests,
			})
		}
	}

	if loginID, ok := result.LoginID(); ok {
		g.logger.Debug("authentication succeeded",
			"login_id", loginID,
			"path", path,
		)
	}

	ctx, ambient := Begin(ctx)
	defer ambient.Clear()

	_ = ambient.Publish(NewAuthContext(result)) // fresh slot, first publish
	return next(ctx)
}
