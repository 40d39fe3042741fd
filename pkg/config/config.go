// Package config provides unified configuration for the tokengate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (TOKENGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"slices"
	"time"
)

// Config holds all configuration for the tokengate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	GRPCPort        int           `yaml:"grpc_port"`        // 0 disables the gRPC listener
	Framework       string        `yaml:"framework"`        // "http" or "echo", default: "http"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// Authentication modes.
const (
	ModePaths    = "paths"    // include/exclude patterns decide
	ModeOptional = "optional" // never reject, publish identity when valid
	ModeRequire  = "require"  // every path requires a login
)

// AuthConfig holds the path policy and the token validator settings.
type AuthConfig struct {
	TokenName      string          `yaml:"token_name"`       // default: "satoken"
	Mode           string          `yaml:"mode"`             // "paths", "optional" or "require", default: "paths"
	Include        []string        `yaml:"include"`          // default: ["/**"]
	Exclude        []string        `yaml:"exclude"`          // default: health and metrics endpoints
	LoginIDPattern string          `yaml:"login_id_pattern"` // optional regexp every login ID must match
	Validator      string          `yaml:"validator"`        // "store", "jwt", "apikey" or "noop", default: "noop"
	Validators     []string        `yaml:"validators"`       // ordered chain, overrides validator when set
	TokenTTL       time.Duration   `yaml:"token_ttl"`        // lifetime of issued tokens, default: 24h
	APIKeys        []APIKeyConfig  `yaml:"api_keys"`         // entries for validator=apikey
	JWT            JWTConfig       `yaml:"jwt"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file"` // _file variant for key
	LoginID     string   `yaml:"login_id" json:"login_id"`
	TenantID    string   `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string   `yaml:"service_tier" json:"service_tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig holds settings for validator=jwt.
type JWTConfig struct {
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	JWKSURL     string        `yaml:"jwks_url"`
	UserClaim   string        `yaml:"user_claim"`   // default: "sub"
	TenantClaim string        `yaml:"tenant_claim"` // default: "tenant_id"
	TierClaim   string        `yaml:"tier_claim"`   // default: "tier"
	ScopesClaim string        `yaml:"scopes_claim"` // default: "scope"
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // default: 1h
}

// RateLimitConfig holds per-tier token bucket settings.
type RateLimitConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Default TierLimit            `yaml:"default"`
	Tiers   map[string]TierLimit `yaml:"tiers"`
}

// TierLimit is the bucket of one service tier.
type TierLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// StorageConfig holds token store settings for validator=store.
type StorageConfig struct {
	Type     string            `yaml:"type"`     // "memory", "redis" or "postgres", default: "memory"
	MaxSize  int               `yaml:"max_size"` // for memory store, default: 10000
	Seed     []SeedTokenConfig `yaml:"seed"`     // tokens saved into the store when serve starts
	Redis    RedisConfig       `yaml:"redis"`
	Postgres PostgresConfig    `yaml:"postgres"`
}

// SeedTokenConfig is a token the server stores on startup. It is the only
// way to populate the memory store.
type SeedTokenConfig struct {
	Token       string        `yaml:"token"`
	TokenFile   string        `yaml:"token_file"` // _file variant for token
	LoginID     string        `yaml:"login_id"`
	TenantID    string        `yaml:"tenant_id"`
	ServiceTier string        `yaml:"service_tier"`
	Scopes      []string      `yaml:"scopes"`
	TTL         time.Duration `yaml:"ttl"` // 0 never expires
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL     string `yaml:"url"`
	URLFile string `yaml:"url_file"` // _file variant for url
	Prefix  string `yaml:"prefix"`   // default: "tokengate:token:"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LogConfig holds logger settings. TOKENGATE_LOG_LEVEL and TOKENGATE_DEBUG
// take precedence over level and debug.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Framework:       "http",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenName: "satoken",
			Mode:      ModePaths,
			Include:   []string{"/**"},
			Exclude:   []string{"/healthz", "/readyz", "/metrics", "/grpc.health.v1.Health/*"},
			Validator: "noop",
			TokenTTL:  24 * time.Hour,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// ValidatorNames returns the configured validator chain: validators when
// set, otherwise the single validator.
func (a AuthConfig) ValidatorNames() []string {
	if len(a.Validators) > 0 {
		return a.Validators
	}
	return []string{a.Validator}
}

// UsesStore reports whether any configured validator reads the token store.
func (a AuthConfig) UsesStore() bool {
	return slices.Contains(a.ValidatorNames(), "store")
}
