package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to AGENTCORE_REDIS_ADDR and isolates keys under a
// random prefix.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("AGENTCORE_REDIS_ADDR")
	if addr == "" {
		t.Skip("AGENTCORE_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	prefix := "agentcore-test:" + core.NewID() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
		_ = rdb.Close()
	})
	return New(rdb, func(o *Options) { o.Prefix = prefix })
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	missing, err := store.Read(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	sess := core.NewSession("s1", "agent", "u1")
	sess.AgentData = map[string]any{"name": "helper"}
	first, err := store.Upsert(ctx, sess)
	require.NoError(t, err)

	sess.SessionData = map[string]any{"k": "v"}
	second, err := store.Upsert(ctx, sess)
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	got, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "helper", got.AgentData["name"])
	assert.Equal(t, "v", got.SessionData["k"])
}

func TestRedisStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, s := range []*core.Session{
		core.NewSession("a", "agent", "u1"),
		core.NewSession("b", "agent", "u2"),
		core.NewSession("c", "agent", "u1"),
	} {
		_, err := store.Upsert(ctx, s)
		require.NoError(t, err)
	}

	mine, err := store.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), storage.ErrNotFound)

	mine, err = store.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
