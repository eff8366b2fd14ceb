package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisHoldStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisHoldStore(rdb), mr
}

func TestRedisHoldStore_AcquireSemantics(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	holder, ok, err := s.Acquire(ctx, "hold:1:A1", "7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", holder)
	assert.Equal(t, time.Minute, mr.TTL("hold:1:A1"))

	holder, ok, err = s.Acquire(ctx, "hold:1:A1", "8", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "7", holder)

	mr.FastForward(30 * time.Second)
	_, ok, err = s.Acquire(ctx, "hold:1:A1", "7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "owner re-acquire refreshes")
	assert.Equal(t, time.Minute, mr.TTL("hold:1:A1"))
}

func TestRedisHoldStore_ExpiryFreesSeat(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := s.Acquire(ctx, "hold:1:B2", "7", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(5*time.Minute + time.Second)

	holder, ok, err := s.Acquire(ctx, "hold:1:B2", "8", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "8", holder)
}

func TestRedisHoldStore_ReleaseOnlyByOwner(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, "hold:1:C3", "7", time.Minute)
	require.NoError(t, err)

	released, err := s.Release(ctx, "hold:1:C3", "8")
	require.NoError(t, err)
	assert.False(t, released)

	got, err := s.Get(ctx, "hold:1:C3")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, got)

	released, err = s.Release(ctx, "hold:1:C3", "7")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = s.Release(ctx, "hold:1:C3", "7")
	require.NoError(t, err)
	assert.False(t, released, "second release is a no-op")
}

func TestRedisHoldStore_Extend(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, "hold:1:D4", "7", time.Minute)
	require.NoError(t, err)

	ok, err := s.Extend(ctx, "hold:1:D4", "8", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("hold:1:D4"))

	ok, err = s.Extend(ctx, "hold:1:D4", "7", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Minute, mr.TTL("hold:1:D4"))

	ok, err = s.Extend(ctx, "hold:1:E5", "7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "missing key cannot be extended")
}

func TestRedisHoldStore_GetAndScan(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	for key, owner := range map[string]string{"hold:1:A1": "7", "hold:1:A2": "8", "hold:2:A1": "9"} {
		_, ok, err := s.Acquire(ctx, key, owner, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, err := s.Get(ctx, "hold:1:A1", "hold:1:A9", "hold:1:A2")
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "", "8"}, got)

	snap, err := s.Scan(ctx, "hold:1:")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hold:1:A1": "7", "hold:1:A2": "8"}, snap)

	empty, err := s.Scan(ctx, "hold:3:")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisHoldStore_ConcurrentAcquireSingleWinner(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	const contenders = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(owner int) {
			defer wg.Done()
			_, ok, err := s.Acquire(ctx, "hold:1:F6", string(rune('a'+owner)), time.Minute)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
