// Package runlock guards the aggregation pass with a redis token lock so an
// HTTP trigger and the scheduler cannot run two passes concurrently against
// the same store.
package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("runlock: another aggregation pass holds the lock")

const lockKey = "loyalsync:metrics:run"

// releaseScript deletes the lock only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Lock struct {
	client *redis.Client
	ttl    time.Duration

	token string
}

func New(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{client: client, ttl: ttl}
}

func (l *Lock) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	l.token = token
	return nil
}

func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	return releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err()
}
