// Package coordination keeps ingestion runs from overlapping, across processes
// through Redis or within one process through a mutex.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultLockTTL = 10 * time.Minute

// ErrLockNotHeld is returned when releasing a lock this instance does not own.
var ErrLockNotHeld = errors.New("lock not held")

var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RunLock is a Redis lock around one ingestion run. Each acquisition gets a
// fresh token, so a run whose lock expired cannot release its successor's.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{client: client, key: key, ttl: ttl}
}

func (l *RunLock) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

func (l *RunLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return ErrLockNotHeld
	}

	released, err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if released == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry of a held lock out to ttl from now.
func (l *RunLock) Extend(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.mu.Unlock()

	if token == "" {
		return ErrLockNotHeld
	}

	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if extended == 0 {
		return ErrLockNotHeld
	}
	return nil
}
