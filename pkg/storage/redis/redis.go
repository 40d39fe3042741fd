// Package redis provides a TokenStore backed by Redis. Tokens are plain
// string keys holding the JSON encoded identity; TTLs map to key expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/storage"
)

const (
	defaultURL    = "redis://localhost:6379"
	defaultPrefix = "tokengate:token:"
)

// Config holds Redis connection settings.
type Config struct {
	// URL is a redis:// or rediss:// connection URL. Default: redis://localhost:6379.
	URL string

	// Prefix is prepended to every token key. Default: "tokengate:token:".
	Prefix string

	// DialTimeout bounds the connectivity check in New. Default: 2s.
	DialTimeout time.Duration
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 2 * time.Second
	}
}

// Store is a Redis-backed TokenStore.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ storage.TokenStore = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Store{client: client, prefix: cfg.Prefix}, nil
}

func (s *Store) key(token string) string {
	return s.prefix + token
}

// Save stores identity under token unless the key already exists.
func (s *Store) Save(ctx context.Context, token string, identity *auth.Identity, ttl time.Duration) error {
	data, err := storage.MarshalIdentity(identity)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(token), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if !ok {
		return storage.ErrConflict
	}
	return nil
}

// Load returns the identity stored for token.
func (s *Store) Load(ctx context.Context, token string) (*auth.Identity, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	return storage.UnmarshalIdentity(data)
}

// Delete removes token.
func (s *Store) Delete(ctx context.Context, token string) error {
	n, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TTL returns the remaining lifetime of token, or zero if it never expires.
func (s *Store) TTL(ctx context.Context, token string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.key(token)).Result()
	if err != nil {
		return 0, fmt.Errorf("reading ttl: %w", err)
	}
	switch d {
	case -2:
		return 0, storage.ErrNotFound
	case -1:
		return 0, nil
	}
	return d, nil
}

// HealthCheck pings Redis.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
