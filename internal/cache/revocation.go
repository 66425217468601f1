package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList remembers revoked access tokens by fingerprint until they
// would have expired anyway.
type RevocationList interface {
	Revoke(ctx context.Context, fingerprint string, ttl time.Duration) error
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
}

type RedisRevocationList struct {
	client *redis.Client
}

var _ RevocationList = (*RedisRevocationList)(nil)

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func (l *RedisRevocationList) key(fingerprint string) string {
	return keyPrefix + "revoked:" + fingerprint
}

func (l *RedisRevocationList) Revoke(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.key(fingerprint), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationList is a single-process RevocationList.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ RevocationList = (*MemoryRevocationList)(nil)

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{entries: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, k)
		}
	}
	l.entries[fingerprint] = now.Add(ttl)
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, fingerprint string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[fingerprint]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.entries, fingerprint)
		return false, nil
	}
	return true, nil
}
