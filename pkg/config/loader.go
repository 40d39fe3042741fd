package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/tokengate/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, TOKENGATE_CONFIG env, ./config.yaml, /etc/tokengate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := DiscoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// DiscoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. TOKENGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/tokengate/config.yaml
//
// Returns empty string if no config file is found.
func DiscoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("TOKENGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/tokengate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps TOKENGATE_* environment variables to config fields.
// Malformed numeric values are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOKENGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TOKENGATE_GRPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = port
		}
	}
	if v := os.Getenv("TOKENGATE_FRAMEWORK"); v != "" {
		cfg.Server.Framework = v
	}

	if v := os.Getenv("TOKENGATE_TOKEN_NAME"); v != "" {
		cfg.Auth.TokenName = v
	}
	if v := os.Getenv("TOKENGATE_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := os.Getenv("TOKENGATE_AUTH_INCLUDE"); v != "" {
		cfg.Auth.Include = splitList(v)
	}
	if v := os.Getenv("TOKENGATE_AUTH_EXCLUDE"); v != "" {
		cfg.Auth.Exclude = splitList(v)
	}
	if v := os.Getenv("TOKENGATE_VALIDATOR"); v != "" {
		cfg.Auth.Validator = v
	}
	if v := os.Getenv("TOKENGATE_VALIDATORS"); v != "" {
		cfg.Auth.Validators = splitList(v)
	}
	if v := os.Getenv("TOKENGATE_JWKS_URL"); v != "" {
		cfg.Auth.JWT.JWKSURL = v
	}

	// TOKENGATE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("TOKENGATE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	if v := os.Getenv("TOKENGATE_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TOKENGATE_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("TOKENGATE_REDIS_URL"); v != "" {
		cfg.Storage.Redis.URL = v
	}
	if v := os.Getenv("TOKENGATE_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}

	if v := os.Getenv("TOKENGATE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.redis.url_file -> storage.redis.url
	if cfg.Storage.Redis.URLFile != "" && cfg.Storage.Redis.URL == "" {
		val, err := readSecretFile(cfg.Storage.Redis.URLFile)
		if err != nil {
			return fmt.Errorf("storage.redis.url_file: %w", err)
		}
		cfg.Storage.Redis.URL = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// storage.seed[*].token_file -> storage.seed[*].token
	for i := range cfg.Storage.Seed {
		if cfg.Storage.Seed[i].TokenFile != "" && cfg.Storage.Seed[i].Token == "" {
			val, err := readSecretFile(cfg.Storage.Seed[i].TokenFile)
			if err != nil {
				return fmt.Errorf("storage.seed[%d].token_file: %w", i, err)
			}
			cfg.Storage.Seed[i].Token = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
