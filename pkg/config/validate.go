package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.GRPCPort < 0 {
		errs = append(errs, fmt.Errorf("server.grpc_port must be >= 0, got %d", c.Server.GRPCPort))
	}
	switch c.Server.Framework {
	case "http", "echo":
	default:
		errs = append(errs, fmt.Errorf("server.framework must be \"http\" or \"echo\", got %q", c.Server.Framework))
	}

	if c.Auth.TokenName == "" {
		errs = append(errs, fmt.Errorf("auth.token_name is required"))
	}
	switch c.Auth.Mode {
	case ModePaths, ModeOptional, ModeRequire:
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be \"paths\", \"optional\", or \"require\", got %q", c.Auth.Mode))
	}
	if c.Auth.LoginIDPattern != "" {
		if _, err := regexp.Compile(c.Auth.LoginIDPattern); err != nil {
			errs = append(errs, fmt.Errorf("auth.login_id_pattern: %w", err))
		}
	}

	names := c.Auth.ValidatorNames()
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			errs = append(errs, fmt.Errorf("auth.validators: %q listed more than once", name))
			continue
		}
		seen[name] = true

		switch name {
		case "store", "noop":
		case "apikey":
			if len(c.Auth.APIKeys) == 0 {
				errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when the \"apikey\" validator is used"))
			}
			for i, k := range c.Auth.APIKeys {
				if k.Key == "" && k.KeyFile == "" {
					errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
				}
				if k.LoginID == "" {
					errs = append(errs, fmt.Errorf("auth.api_keys[%d].login_id is required", i))
				}
			}
		case "jwt":
			if c.Auth.JWT.JWKSURL == "" {
				errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when the \"jwt\" validator is used"))
			}
		default:
			errs = append(errs, fmt.Errorf("auth.validator must be \"store\", \"jwt\", \"apikey\", or \"noop\", got %q", name))
		}
	}
	if len(names) > 1 && seen["noop"] && names[len(names)-1] != "noop" {
		errs = append(errs, fmt.Errorf("auth.validators: \"noop\" accepts every token and must be last"))
	}

	if c.Auth.UsesStore() && c.Storage.Type == "memory" && len(c.Storage.Seed) == 0 {
		errs = append(errs, fmt.Errorf("storage.seed must not be empty when the \"store\" validator uses memory storage; tokens issued from the command line cannot reach the serving process"))
	}
	for i, t := range c.Storage.Seed {
		if t.Token == "" && t.TokenFile == "" {
			errs = append(errs, fmt.Errorf("storage.seed[%d]: token or token_file is required", i))
		}
		if t.LoginID == "" {
			errs = append(errs, fmt.Errorf("storage.seed[%d].login_id is required", i))
		}
		if t.TTL < 0 {
			errs = append(errs, fmt.Errorf("storage.seed[%d].ttl must be >= 0", i))
		}
	}

	if c.Auth.RateLimit.Enabled {
		if c.Auth.RateLimit.Default.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.default.requests_per_second must be >= 0"))
		}
		for name, tl := range c.Auth.RateLimit.Tiers {
			if tl.RequestsPerSecond < 0 {
				errs = append(errs, fmt.Errorf("auth.rate_limit.tiers.%s.requests_per_second must be >= 0", name))
			}
		}
	}

	switch c.Storage.Type {
	case "memory":
	case "redis":
		if c.Storage.Redis.URL == "" && c.Storage.Redis.URLFile == "" {
			errs = append(errs, fmt.Errorf("storage.redis.url or storage.redis.url_file is required when storage.type is \"redis\""))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"redis\", or \"postgres\", got %q", c.Storage.Type))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
