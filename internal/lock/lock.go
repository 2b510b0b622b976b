package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a lock is still held by someone else
// after the configured wait.
var ErrNotObtained = errors.New("lock not obtained")

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker serializes work on a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// ProductKey builds the lock key guarding one product's ledger rows.
func ProductKey(productCode string) string {
	return fmt.Sprintf("ledger:product:%s", productCode)
}

const retryInterval = 100 * time.Millisecond

// RedisLocker is a distributed lock shared by every service instance.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker builds a redislock-backed locker. The key expires after
// ttl unless the holder is alive to refresh it; wait bounds how long
// Acquire retries.
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, wait: wait}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	retries := int(l.wait / retryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), retries),
	}

	held, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(held, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		<-done
		if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// keepAlive pushes the lock expiry back every half TTL until stop is
// closed. It gives up once a refresh fails, leaving the key to expire.
func (l *RedisLocker) keepAlive(held *redislock.Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := held.Refresh(ctx, l.ttl, nil)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// LocalLocker serializes keys within one process only.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewLocalLocker builds an in-process locker.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-slot })
		return nil
	}, nil
}
