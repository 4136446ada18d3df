package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/goliatone/go-storage-cache/config"
	"github.com/goliatone/go-storage-cache/pkg/testsupport"
	"github.com/goliatone/go-storage-cache/storage"
)

func newContainer(t *testing.T, backend storage.Backend) *Container {
	t.Helper()
	c, err := NewContainer(backend, testsupport.NewMemoryShared(time.Now), config.Default(), nil)
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	return c
}

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ChunkSize = 0
	_, err := NewContainer(testsupport.NewMemoryBackend(), testsupport.NewMemoryShared(time.Now), cfg, nil)
	if err == nil {
		t.Error("expected a validation error")
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	c := newContainer(t, testsupport.NewMemoryBackend())

	first := c.Install()
	second := c.Install()
	if first != second {
		t.Error("Install must return the interceptor already in place")
	}
}

func TestDefaultChainCachesReadsAndRewritesQueries(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewMemoryBackend()
	entity := storage.Entity{Key: storage.NewKey("Article", "a"), Props: map[string]any{"rank": int64(1)}}
	backend.Seed(entity)

	db := newContainer(t, backend).Install()

	// Reads populate the entity cache.
	for i := 0; i < 2; i++ {
		res, err := db.Get(ctx, &storage.GetRequest{Keys: []storage.Key{entity.Key}})
		if err != nil {
			t.Fatalf("get %d failed: %v", i, err)
		}
		if res.Entities[0] == nil || res.Entities[0].Key != entity.Key {
			t.Fatalf("get %d wrong result: %+v", i, res.Entities[0])
		}
	}
	if got := backend.Calls(storage.OpGet); got != 1 {
		t.Errorf("repeat read should be cached, backend gets: %d", got)
	}

	// Queries run keys-only and come back whole.
	res, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: &storage.Query{Kind: "Article"}})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if res.KeysOnly || len(res.Entities) != 1 || len(res.Entities[0].Props) == 0 {
		t.Errorf("query result not reconstructed: %+v", res)
	}
}

func TestAddQueryCacheShortCircuitsRepeatQueries(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewMemoryBackend()
	backend.Seed(storage.Entity{Key: storage.NewKey("Article", "a"), Props: map[string]any{"rank": int64(1)}})

	db := newContainer(t, backend).AddQueryCache().Install()

	for i := 0; i < 2; i++ {
		if _, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: &storage.Query{Kind: "Article"}}); err != nil {
			t.Fatalf("query %d failed: %v", i, err)
		}
	}
	if got := backend.Calls(storage.OpRunQuery); got != 1 {
		t.Errorf("repeat query should be served from the query cache, backend runs: %d", got)
	}
}

func TestConfiguredIgnoreKindsReachTheStrategy(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewMemoryBackend()
	backend.Seed(storage.Entity{Key: storage.NewKey("Volatile", "1"), Props: map[string]any{"v": int64(1)}})

	cfg := config.Default()
	cfg.IgnoreKinds = []string{"Volatile"}
	c, err := NewContainer(backend, testsupport.NewMemoryShared(time.Now), cfg, nil)
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	db := c.AddQueryCache().Install()

	for i := 0; i < 2; i++ {
		if _, err := db.RunQuery(ctx, &storage.RunQueryRequest{Query: &storage.Query{Kind: "Volatile"}}); err != nil {
			t.Fatalf("query %d failed: %v", i, err)
		}
	}
	if got := backend.Calls(storage.OpRunQuery); got != 2 {
		t.Errorf("ignored kind should bypass the query cache, backend runs: %d", got)
	}
}

func TestNewContainerWithRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backend := testsupport.NewMemoryBackend()
	entity := storage.Entity{Key: storage.NewKey("Article", "a"), Props: map[string]any{"rank": int64(1)}}
	backend.Seed(entity)

	c, err := NewContainerWithRedis(backend, client, config.Default(), nil)
	if err != nil {
		t.Fatalf("NewContainerWithRedis failed: %v", err)
	}
	db := c.Install()

	if _, err := db.Get(ctx, &storage.GetRequest{Keys: []storage.Key{entity.Key}}); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(mr.Keys()) == 0 {
		t.Error("shared tier should hold the cached entity")
	}
}

func TestAccessorsReturnSingletons(t *testing.T) {
	c := newContainer(t, testsupport.NewMemoryBackend())

	if c.CacheService() == nil || c.QueryCache() == nil || c.ResetDates() == nil || c.Builder() == nil {
		t.Fatal("accessors returned nil collaborators")
	}
	if c.CacheService() != c.CacheService() {
		t.Error("cache service is not a singleton")
	}
	if got := c.Config().ChunkSize; got != config.Default().ChunkSize {
		t.Errorf("config not carried: %d", got)
	}
}
