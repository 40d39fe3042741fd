package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether an authenticated request should be allowed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// InProcessLimiter is a token-bucket rate limiter keyed by login ID and
// service tier, kept in memory.
type InProcessLimiter struct {
	tiers       map[string]TierConfig
	defaultTier TierConfig
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
}

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
// Tiers without an entry use defaultTier.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultTier TierConfig) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:       tiers,
		defaultTier: defaultTier,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Allow reports ErrTooManyRequests when the identity has used up its bucket.
// Requests without an identity are never limited.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	if identity == nil {
		return nil
	}

	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	tc := l.defaultTier
	if c, ok := l.tiers[tier]; ok {
		tc = c
	}
	if tc.RequestsPerSecond <= 0 {
		return nil // no limit
	}

	key := identity.LoginID + ":" + tier

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		burst := tc.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(tc.RequestsPerSecond), burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	if !lim.Allow() {
		return ErrTooManyRequests
	}
	return nil
}
