package service

import (
	"context"
	"log"
	"time"

	"rechargehub/internal/infrastructure/lock"

	"github.com/go-redis/redis/v8"
)

// RedisLocker serializes wallet mutations per account across processes.
// The database row lock already protects a single instance; the redis
// lock keeps two instances from racing the balance fast-fail check.
type RedisLocker struct {
	client     *redis.Client
	expiration time.Duration
}

func NewRedisLocker(client *redis.Client, expiration time.Duration) *RedisLocker {
	return &RedisLocker{client: client, expiration: expiration}
}

func (r *RedisLocker) AcquireWallet(ctx context.Context, userID int64) (func(), error) {
	wl := lock.NewWalletLock(r.client, userID, r.expiration)
	if err := wl.Lock(ctx, 100*time.Millisecond, 50); err != nil {
		return nil, err
	}
	release := func() {
		if err := wl.Unlock(context.Background()); err != nil {
			log.Printf("[Locker] failed to release wallet lock for user %d: %v", userID, err)
		}
	}
	return release, nil
}

// NoopLocker satisfies Locker without external coordination.
type NoopLocker struct{}

func (NoopLocker) AcquireWallet(ctx context.Context, userID int64) (func(), error) {
	return func() {}, nil
}
