// Package idempotency provides a reservation store keyed on caller-supplied
// strings. The orchestrator reserves an order id before creating a payment
// so overlapping or retried create calls cannot mint duplicate gateway
// payments, and keys order-confirmation notifications so at-least-once
// webhook delivery confirms each order at most once.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store reserves and releases idempotency keys.
type Store interface {
	// Reserve claims key for ttl. It returns false when the key is
	// already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees a key, allowing a later retry to claim it again.
	Release(ctx context.Context, key string) error
}

// MemoryStore is a process-local Store for tests and single-instance
// deployments.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> expiry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]time.Time)}
}

func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if expiry, held := s.keys[key]; held && now.Before(expiry) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// RedisStore is a Redis-backed Store for multi-instance deployments.
// Reservation is a single SETNX so two racing creates cannot both win.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a Redis client; prefix namespaces the keys.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.fullKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: failed to reserve key: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: failed to release key: %w", err)
	}
	return nil
}

func (s *RedisStore) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}
