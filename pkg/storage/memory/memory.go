// Package memory provides an in-memory TokenStore for tests and single
// instance deployments. Tokens are lost when the process restarts.
// Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/tokengate/pkg/auth"
	"github.com/rhuss/tokengate/pkg/storage"
)

type entry struct {
	identity  *auth.Identity
	expiresAt time.Time     // zero = never
	lruElem   *list.Element // position in LRU list
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-memory TokenStore with TTL expiry and optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
	now     func() time.Time
}

var _ storage.TokenStore = (*Store)(nil)

// New creates an in-memory store. If maxSize is 0 the store grows without
// limit; otherwise the least recently used token is evicted at capacity.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Save stores a copy of identity under token.
func (s *Store) Save(_ context.Context, token string, identity *auth.Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.entries[token]; exists {
		if !e.expired(now) {
			return storage.ErrConflict
		}
		s.remove(token, e)
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	e := &entry{
		identity: identity.Clone(),
		lruElem:  s.lruList.PushFront(token),
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[token] = e
	return nil
}

// Load returns a copy of the identity for token. Expired tokens are
// removed on access.
func (s *Store) Load(_ context.Context, token string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if e.expired(s.now()) {
		s.remove(token, e)
		return nil, storage.ErrNotFound
	}

	s.lruList.MoveToFront(e.lruElem)
	return e.identity.Clone(), nil
}

// Delete removes token.
func (s *Store) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok || e.expired(s.now()) {
		if ok {
			s.remove(token, e)
		}
		return storage.ErrNotFound
	}
	s.remove(token, e)
	return nil
}

// Purge drops every expired token and returns how many were removed.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for token, e := range s.entries {
		if e.expired(now) {
			s.remove(token, e)
			n++
		}
	}
	return n
}

// Len returns the number of stored tokens, including expired ones not yet purged.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// remove deletes an entry. Must be called with s.mu held.
func (s *Store) remove(token string, e *entry) {
	s.lruList.Remove(e.lruElem)
	delete(s.entries, token)
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	token := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, token)
}
