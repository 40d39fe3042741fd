package config

import (
	"fmt"
	"regexp"

	"github.com/rhuss/tokengate/pkg/auth"
)

// Policy builds the path policy described by the auth section.
func (a AuthConfig) Policy() (*auth.PathAuthPolicy, error) {
	var opts []auth.PolicyOption
	if a.LoginIDPattern != "" {
		re, err := regexp.Compile(a.LoginIDPattern)
		if err != nil {
			return nil, fmt.Errorf("auth.login_id_pattern: %w", err)
		}
		opts = append(opts, auth.WithLoginIDValidator(auth.PatternLoginIDValidator(re)))
	}

	switch a.Mode {
	case ModeOptional:
		return auth.OptionalPolicy(), nil
	case ModeRequire:
		return auth.RequireLoginPolicy(opts...), nil
	case ModePaths, "":
		return auth.NewPathAuthPolicy(a.Include, a.Exclude, opts...), nil
	default:
		return nil, fmt.Errorf("unknown auth.mode %q", a.Mode)
	}
}

// Limiter builds the rate limiter, or returns nil when rate limiting is off.
func (a AuthConfig) Limiter() auth.RateLimiter {
	if !a.RateLimit.Enabled {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(a.RateLimit.Tiers))
	for name, tl := range a.RateLimit.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerSecond: tl.RequestsPerSecond, Burst: tl.Burst}
	}
	return auth.NewInProcessLimiter(tiers, auth.TierConfig{
		RequestsPerSecond: a.RateLimit.Default.RequestsPerSecond,
		Burst:             a.RateLimit.Default.Burst,
	})
}
