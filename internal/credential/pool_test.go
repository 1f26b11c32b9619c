package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video_ingestor/internal/domain"
)

type staticStore struct {
	keys  []string
	err   error
	calls int
}

func (s *staticStore) ListKeys(context.Context) ([]string, error) {
	s.calls++
	return s.keys, s.err
}

func TestPool_NextInOrderThenExhausted(t *testing.T) {
	pool := NewPool(&staticStore{keys: []string{"k1", "k2", "k3"}})
	require.NoError(t, pool.Load(context.Background()))
	assert.Equal(t, 3, pool.Len())

	for _, want := range []string{"k1", "k2", "k3"} {
		got, err := pool.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := pool.Next()
	assert.ErrorIs(t, err, domain.ErrCredentialsExhausted)

	// exhaustion is permanent
	_, err = pool.Next()
	assert.ErrorIs(t, err, domain.ErrCredentialsExhausted)
	assert.Equal(t, 3, pool.Used())
}

func TestPool_LoadEmptyStore(t *testing.T) {
	pool := NewPool(&staticStore{})
	err := pool.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoCredentials)
}

func TestPool_LoadSkipsBlankKeys(t *testing.T) {
	pool := NewPool(&staticStore{keys: []string{" ", "", "\t"}})
	assert.ErrorIs(t, pool.Load(context.Background()), domain.ErrNoCredentials)

	pool = NewPool(&staticStore{keys: []string{"", " k1 "}})
	require.NoError(t, pool.Load(context.Background()))
	key, err := pool.Next()
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
}

func TestPool_LoadStoreError(t *testing.T) {
	pool := NewPool(&staticStore{err: errors.New("connection refused")})
	err := pool.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load api keys")
	assert.NotErrorIs(t, err, domain.ErrNoCredentials)
}

func TestPool_NextBeforeLoad(t *testing.T) {
	pool := NewPool(&staticStore{keys: []string{"k1"}})
	_, err := pool.Next()
	assert.ErrorIs(t, err, domain.ErrNoCredentials)
}

func TestPool_LoadResetsPosition(t *testing.T) {
	store := &staticStore{keys: []string{"k1", "k2"}}
	pool := NewPool(store)
	require.NoError(t, pool.Load(context.Background()))

	_, _ = pool.Next()
	_, _ = pool.Next()
	_, err := pool.Next()
	require.ErrorIs(t, err, domain.ErrCredentialsExhausted)

	require.NoError(t, pool.Load(context.Background()))
	key, err := pool.Next()
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
	assert.Equal(t, 2, store.calls)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask(""))
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "****wxyz", Mask("AIzaSyabcdwxyz"))
}
