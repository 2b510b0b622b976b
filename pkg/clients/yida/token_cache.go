package yida

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores DingTalk access tokens until shortly before they expire.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// MemoryTokenCache keeps tokens in process.
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]cachedToken
	now    func() time.Time
}

// NewMemoryTokenCache returns an empty in-process cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]cachedToken), now: time.Now}
}

func (m *MemoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.tokens[key]
	if !ok || !m.now().Before(entry.expiresAt) {
		return "", false, nil
	}
	return entry.token, true, nil
}

func (m *MemoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[key] = cachedToken{token: token, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryTokenCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, key)
	return nil
}

// RedisTokenCache shares tokens between service instances.
type RedisTokenCache struct {
	rdb *redis.Client
}

// NewRedisTokenCache wraps an existing redis client.
func NewRedisTokenCache(rdb *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb}
}

func (r *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, token, ttl).Err()
}

func (r *RedisTokenCache) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}
