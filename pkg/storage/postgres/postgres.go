// Package postgres provides a PostgreSQL TokenStore. It uses pgx/v5 for
// connection pooling and stores identities as JSONB.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/debug"
	"github.com/rhuss/tokengate/pkg/storage"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed TokenStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.TokenStore = (*Store)(nil)

// New creates a store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Save inserts a token row. A ttl of zero leaves expires_at NULL.
func (s *Store) Save(ctx context.Context, token string, identity *auth.Identity, ttl time.Duration) error {
	data, err := storage.MarshalIdentity(identity)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// An expired row does not block reuse of its token.
		if _, err := tx.Exec(ctx,
			"DELETE FROM tokens WHERE token = $1 AND expires_at IS NOT NULL AND expires_at <= now()",
			token,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO tokens (token, login_id, identity, expires_at)
			VALUES ($1, $2, $3, $4)
		`, token, identity.LoginID, data, expiresAt)
		return err
	})
	if isDuplicateKey(err) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// Load returns the identity for an unexpired token.
func (s *Store) Load(ctx context.Context, token string) (*auth.Identity, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT identity FROM tokens
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > now())
	`, token).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return storage.UnmarshalIdentity(data)
}

// Delete removes an unexpired token.
func (s *Store) Delete(ctx context.Context, token string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM tokens
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > now())
	`, token)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteLoginID revokes every token issued to loginID and returns how many
// were removed.
func (s *Store) DeleteLoginID(ctx context.Context, loginID string) (int64, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM tokens WHERE login_id = $1", loginID)
	if err != nil {
		return 0, fmt.Errorf("deleting tokens of %q: %w", loginID, err)
	}
	return result.RowsAffected(), nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("purging expired tokens: %w", err)
	}
	debug.Log("storage", "purged expired tokens", "count", result.RowsAffected())
	return result.RowsAffected(), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey reports whether err is a unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
