package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, 30*time.Minute), mr
}

func TestLock_AcquireRelease(t *testing.T) {
	lock, mr := testLock(t)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx))
	assert.True(t, mr.Exists(lockKey))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists(lockKey))
}

func TestLock_SecondHolderRejected(t *testing.T) {
	lock, mr := testLock(t)
	ctx := context.Background()

	second := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 30*time.Minute)

	require.NoError(t, lock.Acquire(ctx))
	assert.ErrorIs(t, second.Acquire(ctx), ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	assert.NoError(t, second.Acquire(ctx))
}

func TestLock_ReleaseOnlyOwnToken(t *testing.T) {
	lock, mr := testLock(t)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx))

	// The lock expired and another pass took it over; releasing must not
	// delete the new holder's token.
	mr.FastForward(time.Hour)
	second := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 30*time.Minute)
	require.NoError(t, second.Acquire(ctx))

	require.NoError(t, lock.Release(ctx))
	assert.True(t, mr.Exists(lockKey))
}

func TestLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	lock, _ := testLock(t)
	assert.NoError(t, lock.Release(context.Background()))
}
