package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	id := &auth.Identity{LoginID: "alice", ServiceTier: "gold", Metadata: map[string]string{"tenant_id": "acme"}}
	require.NoError(t, s.Save(ctx, "tok-1", id, 0))
	assert.True(t, mr.Exists(defaultPrefix+"tok-1"))

	got, err := s.Load(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.LoginID)
	assert.Equal(t, "acme", got.TenantID())

	assert.ErrorIs(t, s.Save(ctx, "tok-1", id, 0), storage.ErrConflict)

	require.NoError(t, s.Delete(ctx, "tok-1"))
	_, err = s.Load(ctx, "tok-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "tok-1"), storage.ErrNotFound)
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "short", &auth.Identity{LoginID: "a"}, time.Minute))
	require.NoError(t, s.Save(ctx, "forever", &auth.Identity{LoginID: "b"}, 0))

	ttl, err := s.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	ttl, err = s.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Zero(t, ttl)

	mr.FastForward(2 * time.Minute)

	_, err = s.Load(ctx, "short")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TTL(ctx, "short")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Load(ctx, "forever")
	assert.NoError(t, err)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set(defaultPrefix+"bad", "not json"))

	_, err := s.Load(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Config{URL: "redis://" + mr.Addr(), Prefix: "app:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "x", &auth.Identity{LoginID: "a"}, 0))
	assert.True(t, mr.Exists("app:x"))
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{URL: "redis://" + addr, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestRedisStore_HealthCheck(t *testing.T) {
	s, mr := newTestStore(t)
	assert.NoError(t, s.HealthCheck(context.Background()))

	mr.SetError("server down")
	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestRedisStore_AsValidator(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	token, err := storage.Issue(ctx, s, &auth.Identity{LoginID: "carol"}, time.Second)
	require.NoError(t, err)

	v := storage.NewValidator(s)
	r := auth.ProcessAuth(ctx, "/api/x", token, auth.RequireLoginPolicy(), v)
	assert.False(t, r.ShouldReject())

	mr.FastForward(2 * time.Second)
	r = auth.ProcessAuth(ctx, "/api/x", token, auth.RequireLoginPolicy(), v)
	assert.True(t, r.ShouldReject())
	assert.Equal(t, auth.ReasonInvalidCredential, r.Reason)
}
