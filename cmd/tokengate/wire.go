package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/auth/apikey"
	"github.com/rhuss/tokengate/pkg/auth/jwt"
	"github.com/rhuss/tokengate/pkg/auth/noop"
	"github.com/rhuss/tokengate/pkg/config"
	"github.com/rhuss/tokengate/pkg/storage"
	"github.com/rhuss/tokengate/pkg/storage/memory"
	"github.com/rhuss/tokengate/pkg/storage/postgres"
	"github.com/rhuss/tokengate/pkg/storage/redis"
)

var errMemoryStore = errors.New("memory storage is private to the serving process; configure redis or postgres to manage tokens from the command line")

// openStore connects to the configured token store.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.TokenStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.MaxSize), nil
	case "redis":
		s, err := redis.New(ctx, redis.Config{
			URL:    cfg.Redis.URL,
			Prefix: cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// openSharedStore is openStore for commands that run outside the server.
func openSharedStore(ctx context.Context, cfg config.StorageConfig) (storage.TokenStore, error) {
	if cfg.Type == "memory" {
		return nil, errMemoryStore
	}
	return openStore(ctx, cfg)
}

// buildValidator creates the configured validator, or a chain of them when
// auth.validators lists more than one. The store is non-nil only when a
// store validator is in use and must be closed by the caller.
func buildValidator(ctx context.Context, cfg *config.Config) (auth.TokenValidator, storage.TokenStore, error) {
	var (
		validators []auth.TokenValidator
		store      storage.TokenStore
	)
	for _, name := range cfg.Auth.ValidatorNames() {
		v, s, err := newValidator(ctx, cfg, name)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, nil, err
		}
		if s != nil {
			store = s
		}
		validators = append(validators, v)
	}
	if len(validators) == 1 {
		return validators[0], store, nil
	}
	return auth.NewChain(validators...), store, nil
}

func newValidator(ctx context.Context, cfg *config.Config, name string) (auth.TokenValidator, storage.TokenStore, error) {
	switch name {
	case "store":
		s, err := openStore(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Type, err)
		}
		if err := seedStore(ctx, s, cfg.Storage.Seed); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return storage.NewValidator(s), s, nil

	case "jwt":
		j := cfg.Auth.JWT
		return jwt.New(jwt.Config{
			Issuer:      j.Issuer,
			Audience:    j.Audience,
			JWKSURL:     j.JWKSURL,
			UserClaim:   j.UserClaim,
			TenantClaim: j.TenantClaim,
			TierClaim:   j.TierClaim,
			ScopesClaim: j.ScopesClaim,
			CacheTTL:    j.CacheTTL,
		}), nil, nil

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: *newIdentity(k.LoginID, k.ServiceTier, k.TenantID, k.Scopes),
			})
		}
		return apikey.New(entries), nil, nil

	case "noop":
		return noop.Validator{}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown validator %q", name)
	}
}

// seedStore saves the configured seed tokens. A token already present is
// left as it is, so persistent stores survive restarts.
func seedStore(ctx context.Context, s storage.TokenStore, seed []config.SeedTokenConfig) error {
	for i, t := range seed {
		id := newIdentity(t.LoginID, t.ServiceTier, t.TenantID, t.Scopes)
		err := s.Save(ctx, t.Token, id, t.TTL)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding storage.seed[%d]: %w", i, err)
		}
	}
	if len(seed) > 0 {
		slog.Info("token store seeded", "tokens", len(seed))
	}
	return nil
}

func newIdentity(loginID, tier, tenant string, scopes []string) *auth.Identity {
	id := &auth.Identity{
		LoginID:     loginID,
		ServiceTier: tier,
		Scopes:      scopes,
	}
	if tenant != "" {
		id.Metadata = map[string]string{"tenant_id": tenant}
	}
	return id
}

// newGuard builds the request guard from configuration.
func newGuard(cfg *config.Config, validator auth.TokenValidator) (*auth.Guard, error) {
	policy, err := cfg.Auth.Policy()
	if err != nil {
		return nil, err
	}
	return auth.NewGuard(auth.GuardOptions{
		TokenName:     cfg.Auth.TokenName,
		Policy:        auth.NewPolicyHolder(policy),
		Validator:     validator,
		ValidatorName: strings.Join(cfg.Auth.ValidatorNames(), "+"),
		Limiter:       cfg.Auth.Limiter(),
	}), nil
}
