package keylock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"golang-autotrader/pkg/logger"
)

const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const unlockTimeout = 5 * time.Second

// RedisLocker is a cross-process lock using SETNX with a TTL. It does not
// wait: a held key returns ErrLockHeld.
type RedisLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	log      *logger.Logger
	unlockSc *redis.Script
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisLocker{
		rdb:      rdb,
		ttl:      ttl,
		log:      log,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := r.rdb.SetNX(ctx, lk, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("keylock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// caller ctx may already be cancelled
			unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()
			if err := r.release(unlockCtx, lk, token); err != nil {
				r.log.Warn("Failed to release lock",
					logger.StringField("key", key),
					logger.ErrorField(err),
				)
			}
		})
	}, nil
}

// release deletes lk only while it still holds token.
func (r *RedisLocker) release(ctx context.Context, lk, token string) error {
	deleted, err := r.unlockSc.Run(ctx, r.rdb, []string{lk}, token).Int64()
	if err != nil {
		return fmt.Errorf("keylock: release %s: %w", lk, err)
	}
	if deleted == 0 {
		return fmt.Errorf("keylock: release %s: lock expired or taken over", lk)
	}
	return nil
}

var (
	_ Locker = (*MemoryLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)
