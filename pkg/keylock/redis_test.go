package keylock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"golang-autotrader/pkg/logger"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis, *observer.ObservedLogs) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	core, logs := observer.New(zapcore.WarnLevel)
	return NewRedisLocker(rdb, ttl, &logger.Logger{Logger: zap.New(core)}), mr, logs
}

func TestRedisLocker_ContentionReturnsErrLockHeld(t *testing.T) {
	locker, mr, _ := newTestRedisLocker(t, 30*time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "1:AAPL")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:1:AAPL"))
	assert.Equal(t, 30*time.Second, mr.TTL("lock:1:AAPL"))

	_, err = locker.Lock(ctx, "1:AAPL")
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Lock(ctx, "2:AAPL")
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("lock:1:AAPL"))

	again, err := locker.Lock(ctx, "1:AAPL")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockCanBeRetaken(t *testing.T) {
	locker, mr, _ := newTestRedisLocker(t, 10*time.Second)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "1:AAPL")
	require.NoError(t, err)

	mr.FastForward(5 * time.Second)
	_, err = locker.Lock(ctx, "1:AAPL")
	assert.ErrorIs(t, err, ErrLockHeld)

	mr.FastForward(6 * time.Second)
	assert.False(t, mr.Exists("lock:1:AAPL"))

	unlock, err := locker.Lock(ctx, "1:AAPL")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_UnlockKeepsAnotherHoldersLock(t *testing.T) {
	locker, mr, logs := newTestRedisLocker(t, 10*time.Second)
	ctx := context.Background()

	staleUnlock, err := locker.Lock(ctx, "1:AAPL")
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)
	freshUnlock, err := locker.Lock(ctx, "1:AAPL")
	require.NoError(t, err)
	freshToken, err := mr.Get("lock:1:AAPL")
	require.NoError(t, err)

	staleUnlock()

	got, err := mr.Get("lock:1:AAPL")
	require.NoError(t, err)
	assert.Equal(t, freshToken, got)
	require.Equal(t, 1, logs.FilterMessage("Failed to release lock").Len())

	freshUnlock()
	assert.False(t, mr.Exists("lock:1:AAPL"))
}

func TestRedisLocker_UnlockIsIdempotent(t *testing.T) {
	locker, mr, logs := newTestRedisLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "1:AAPL")
	require.NoError(t, err)

	unlock()
	unlock()

	assert.False(t, mr.Exists("lock:1:AAPL"))
	assert.Zero(t, logs.Len())
}

func TestRedisLocker_LogsUnreachableServerOnUnlock(t *testing.T) {
	locker, mr, logs := newTestRedisLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "1:AAPL")
	require.NoError(t, err)

	mr.Close()
	unlock()

	entries := logs.FilterMessage("Failed to release lock").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "1:AAPL", entries[0].ContextMap()["key"])
}
