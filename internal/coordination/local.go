package coordination

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalLock guards runs inside a single process. It is used when no Redis
// is configured, so the scheduler and the admin API still cannot overlap.
type LocalLock struct {
	mu   sync.Mutex
	held atomic.Bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) TryLock(_ context.Context) (bool, error) {
	if !l.mu.TryLock() {
		return false, nil
	}
	l.held.Store(true)
	return true, nil
}

func (l *LocalLock) Unlock(_ context.Context) error {
	if !l.held.CompareAndSwap(true, false) {
		return ErrLockNotHeld
	}
	l.mu.Unlock()
	return nil
}

// Extend only reports whether the lock is held; a local lock never expires.
func (l *LocalLock) Extend(_ context.Context) error {
	if !l.held.Load() {
		return ErrLockNotHeld
	}
	return nil
}
