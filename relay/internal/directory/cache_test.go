package directory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedDirectory_ChannelName(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream := &fakeDirectory{channels: map[string]string{"C1": "general"}}
	cache := NewCachedDirectory(upstream, client, time.Minute, nil)
	ctx := context.Background()

	t.Run("miss goes upstream", func(t *testing.T) {
		name, err := cache.ChannelName(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, "general", name)
		assert.Equal(t, 1, upstream.channelHits)
	})

	t.Run("hit is served from redis", func(t *testing.T) {
		name, err := cache.ChannelName(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, "general", name)
		assert.Equal(t, 1, upstream.channelHits)
	})

	t.Run("entry expires", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		_, err := cache.ChannelName(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, 2, upstream.channelHits)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		_, err := cache.ChannelName(ctx, "C404")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = cache.ChannelName(ctx, "C404")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 4, upstream.channelHits)
		assert.False(t, mr.Exists(cacheKeyPrefix+"channel:C404"))
	})
}

func TestCachedDirectory_LookupUser(t *testing.T) {
	_, client := setupTestRedis(t)
	want := User{ID: "U1", Name: "jdoe", RealName: "Jane Doe", Email: "jane@example.com"}
	upstream := &fakeDirectory{users: map[string]User{"U1": want}}
	cache := NewCachedDirectory(upstream, client, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cache.LookupUser(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, upstream.userHits)
}

func TestCachedDirectory_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	upstream := &fakeDirectory{
		channels: map[string]string{"C1": "general"},
		users:    map[string]User{"U1": {ID: "U1", Name: "jdoe"}},
	}
	cache := NewCachedDirectory(upstream, client, time.Minute, nil)
	mr.Close()

	name, err := cache.ChannelName(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "general", name)

	u, err := cache.LookupUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", u.Name)
}
