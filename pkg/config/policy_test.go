package config

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/tokengate/pkg/auth"
)

func TestAuthConfigPolicy(t *testing.T) {
	tests := []struct {
		name string
		cfg  AuthConfig
		path string
		want bool
	}{
		{"paths include", AuthConfig{Mode: ModePaths, Include: []string{"/api/**"}}, "/api/users", true},
		{"paths outside include", AuthConfig{Mode: ModePaths, Include: []string{"/api/**"}}, "/static/app.js", false},
		{"paths exclude wins", AuthConfig{Mode: ModePaths, Include: []string{"/**"}, Exclude: []string{"/healthz"}}, "/healthz", false},
		{"empty mode is paths", AuthConfig{Include: []string{"/**"}}, "/x", true},
		{"optional never requires", AuthConfig{Mode: ModeOptional, Include: []string{"/**"}}, "/api/users", false},
		{"require ignores exclude", AuthConfig{Mode: ModeRequire, Exclude: []string{"/healthz"}}, "/healthz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.cfg.Policy()
			if err != nil {
				t.Fatalf("Policy() error: %v", err)
			}
			if got := p.Check(tt.path); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestAuthConfigPolicyLoginIDPattern(t *testing.T) {
	cfg := AuthConfig{Mode: ModeRequire, LoginIDPattern: "^user-[0-9]+$"}
	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy() error: %v", err)
	}
	if !p.ValidateLoginID("user-42") {
		t.Error("ValidateLoginID(user-42) = false, want true")
	}
	if p.ValidateLoginID("admin") {
		t.Error("ValidateLoginID(admin) = true, want false")
	}

	if _, err := (AuthConfig{LoginIDPattern: "(["}).Policy(); err == nil {
		t.Error("Policy() with bad pattern: error = nil, want error")
	}
}

func TestAuthConfigLimiter(t *testing.T) {
	if l := (AuthConfig{}).Limiter(); l != nil {
		t.Errorf("Limiter() with rate limiting off = %v, want nil", l)
	}

	cfg := AuthConfig{RateLimit: RateLimitConfig{
		Enabled: true,
		Default: TierLimit{RequestsPerSecond: 1, Burst: 1},
		Tiers:   map[string]TierLimit{"premium": {RequestsPerSecond: 100, Burst: 100}},
	}}
	l := cfg.Limiter()
	if l == nil {
		t.Fatal("Limiter() = nil, want limiter")
	}

	ctx := context.Background()
	free := &auth.Identity{LoginID: "alice"}
	if err := l.Allow(ctx, free); err != nil {
		t.Fatalf("first Allow() = %v, want nil", err)
	}
	if err := l.Allow(ctx, free); !errors.Is(err, auth.ErrTooManyRequests) {
		t.Errorf("second Allow() = %v, want ErrTooManyRequests", err)
	}

	premium := &auth.Identity{LoginID: "bob", ServiceTier: "premium"}
	for i := range 5 {
		if err := l.Allow(ctx, premium); err != nil {
			t.Fatalf("premium Allow() #%d = %v, want nil", i, err)
		}
	}
}
