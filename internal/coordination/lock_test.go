package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRunLock_ExclusiveAcrossInstances(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)

	first := NewRunLock(client, "ingest:run", time.Minute)
	second := NewRunLock(client, "ingest:run", time.Minute)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunLock_SetsTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	lock := NewRunLock(client, "ingest:run", 2*time.Minute)
	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 2*time.Minute, mr.TTL("ingest:run"))
}

func TestRunLock_DefaultTTL(t *testing.T) {
	lock := NewRunLock(nil, "ingest:run", 0)
	assert.Equal(t, DefaultLockTTL, lock.ttl)
}

func TestRunLock_UnlockWithoutLock(t *testing.T) {
	_, client := newTestClient(t)

	lock := NewRunLock(client, "ingest:run", time.Minute)
	assert.ErrorIs(t, lock.Unlock(context.Background()), ErrLockNotHeld)
}

func TestRunLock_ExpiredLockIsNotReleasedBySlowRun(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	slow := NewRunLock(client, "ingest:run", time.Minute)
	fast := NewRunLock(client, "ingest:run", time.Minute)

	ok, err := slow.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = fast.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, slow.Unlock(ctx), ErrLockNotHeld)
	assert.True(t, mr.Exists("ingest:run"))
}

func TestRunLock_Extend(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	lock := NewRunLock(client, "ingest:run", time.Minute)
	assert.ErrorIs(t, lock.Extend(ctx), ErrLockNotHeld)

	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(40 * time.Second)
	require.NoError(t, lock.Extend(ctx))
	assert.Equal(t, time.Minute, mr.TTL("ingest:run"))
}

func TestRunLock_RedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	lock := NewRunLock(client, "ingest:run", time.Minute)
	_, err := lock.TryLock(context.Background())
	assert.Error(t, err)
}
