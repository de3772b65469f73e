// Package redislock serializes upserts per user key across processes with a
// Redis lock. It wraps stores that cannot run check-and-create atomically.
package redislock

import (
	"context"
	"errors"
	"time"

	"ignews-service/internal/logger"
	"ignews-service/internal/users"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "lock:users:"
	pollInterval = 20 * time.Millisecond
)

var ErrLockTimeout = errors.New("redislock: timed out waiting for lock")

// release deletes the lock only if it still holds our token.
var release = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Store struct {
	next   users.Store
	client *goredis.Client
	ttl    time.Duration
}

// New wraps next. ttl is both the lock expiry and how long Upsert waits to
// acquire it.
func New(next users.Store, client *goredis.Client, ttl time.Duration) *Store {
	return &Store{next: next, client: client, ttl: ttl}
}

func (s *Store) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	lockKey := keyPrefix + key
	token := uuid.NewString()

	if err := s.acquire(ctx, lockKey, token); err != nil {
		return users.Result{}, users.NewTransient("lock acquire", err)
	}
	defer s.unlock(lockKey, token)

	return s.next.Upsert(ctx, key, email)
}

func (s *Store) acquire(ctx context.Context, lockKey, token string) error {
	deadline := time.Now().Add(s.ttl)

	for {
		ok, err := s.client.SetNX(ctx, lockKey, token, s.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (s *Store) unlock(lockKey, token string) {
	// The request context may already be canceled; the lock must still go.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := release.Run(ctx, s.client, []string{lockKey}, token).Err(); err != nil {
		logger.Warn("user lock release failed", map[string]any{
			"lock":  lockKey,
			"error": err,
		})
	}
}
