package docstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testRedisURLEnv = "BUILDMART_TEST_REDIS_URL"

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newRedisStore(t *testing.T, client *redis.Client, opts ...Option) *Engine {
	t.Helper()
	prefix := "test:" + uuid.NewString()
	store, err := NewRedis(context.Background(), client, RedisOptions{KeyPrefix: prefix}, opts...)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
	})
	return store
}

func TestRedisStoreMiniredis(t *testing.T) {
	client := newMiniredisClient(t)
	runStoreSuite(t, func(t *testing.T) Store { return newRedisStore(t, client) })
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv(testRedisURLEnv)
	if url == "" {
		t.Skipf("%s not set", testRedisURLEnv)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	runStoreSuite(t, func(t *testing.T) Store { return newRedisStore(t, client) })
}

func TestRedisUnrelatedWritesDoNotContend(t *testing.T) {
	client := newMiniredisClient(t)
	s := newRedisStore(t, client, WithMaxRetries(1))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("Vendors/v%d/Orders/New Orders/o%d", i, i)
			if err := s.Set(ctx, path, map[string]any{"total": i, "version": 1}); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Empty(t, errs)

	vendors, ok, err := s.Get(ctx, "Vendors")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, vendors, 40)
}

func TestRedisGuardedCommitsHaveOneWinner(t *testing.T) {
	client := newMiniredisClient(t)
	s := newRedisStore(t, client)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "Vendors/v/Orders/New Orders/o1", map[string]any{"version": 1}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Commit(ctx, NewBatch().
				Require("Vendors/v/Orders/New Orders/o1/version", 1).
				Set("Vendors/v/Orders/Accepted Orders/o1", map[string]any{"version": 2, "by": fmt.Sprint(i)}).
				Delete("Vendors/v/Orders/New Orders/o1"))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, successes)

	_, ok, err := s.Get(ctx, "Vendors/v/Orders/New Orders/o1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisKeyLayout(t *testing.T) {
	b := &redisBackend{prefix: "bm:doc"}
	if got := b.docKey("Users/c/Cart/p1"); got != "bm:doc:Users/c/Cart/p1" {
		t.Fatalf("unexpected doc key %s", got)
	}
	if got := b.indexKey("Users/c/Cart"); got != "bm:doc:index:Users/c/Cart" {
		t.Fatalf("unexpected index key %s", got)
	}
}

func TestRedisIndexesEveryAncestor(t *testing.T) {
	client := newMiniredisClient(t)
	s := newRedisStore(t, client)
	b := s.backend.(*redisBackend)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "Users/c/Cart/p1", map[string]any{"price": 4}))
	for _, ancestor := range []string{"Users", "Users/c", "Users/c/Cart"} {
		members, err := client.ZRange(ctx, b.indexKey(ancestor), 0, -1).Result()
		require.NoError(t, err)
		require.Equal(t, []string{"Users/c/Cart/p1"}, members)
	}

	require.NoError(t, s.Delete(ctx, "Users/c/Cart/p1"))
	n, err := client.Exists(ctx, b.indexKey("Users"), b.indexKey("Users/c/Cart")).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}
