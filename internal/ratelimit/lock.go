package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyReconcilerRun = "reconciler:run"

// Deletes the run key only while it still carries the caller's token, so a
// run that outlived its TTL cannot release a lock taken by the next run.
var releaseRunScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder == false then
  return 0
end
if holder ~= ARGV[1] then
  return -1
end
return redis.call("DEL", KEYS[1])
`)

var ErrRunLockLost = errors.New("run_lock_lost")

// RunLock guards reconciler runs across processes.
type RunLock struct {
	client *redis.Client
	key    string
}

func NewRunLock(client *redis.Client) *RunLock {
	if client == nil {
		return nil
	}
	return &RunLock{client: client, key: keyReconcilerRun}
}

// Acquire returns acquired=true without a token when locking is disabled.
func (l *RunLock) Acquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("run lock ttl must be positive")
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Release returns ErrRunLockLost when another run already owns the key.
// A missing key is not an error; the TTL simply elapsed.
func (l *RunLock) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	res, err := releaseRunScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return err
	}
	if res < 0 {
		return ErrRunLockLost
	}
	return nil
}
