package strategies

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/pkg/testsupport"
	"github.com/goliatone/go-storage-cache/querycache"
	"github.com/goliatone/go-storage-cache/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingBackend wraps the in-memory backend and keeps the last request
// of the operations the strategy tests care about.
type recordingBackend struct {
	*testsupport.MemoryBackend

	mu           sync.Mutex
	lastGet      *storage.GetRequest
	lastRunQuery *storage.RunQueryRequest
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{MemoryBackend: testsupport.NewMemoryBackend()}
}

func (b *recordingBackend) Get(ctx context.Context, req *storage.GetRequest) (*storage.GetResponse, error) {
	b.mu.Lock()
	b.lastGet = req
	b.mu.Unlock()
	return b.MemoryBackend.Get(ctx, req)
}

func (b *recordingBackend) RunQuery(ctx context.Context, req *storage.RunQueryRequest) (*storage.QueryResult, error) {
	b.mu.Lock()
	b.lastRunQuery = req
	b.mu.Unlock()
	return b.MemoryBackend.RunQuery(ctx, req)
}

func (b *recordingBackend) LastGet() *storage.GetRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastGet
}

func (b *recordingBackend) LastRunQuery() *storage.RunQueryRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRunQuery
}

func newCacheService(t *testing.T, clock *fakeClock) *cache.Service {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.Clock = clock.Now
	svc, err := cache.NewService(testsupport.NewMemoryShared(clock.Now), cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func newQueryCache(svc *cache.Service, backend storage.Backend, clock *fakeClock) *querycache.QueryCache {
	resets := querycache.NewResetDateStore(svc, backend, nil, clock.Now)
	return querycache.NewQueryCache(svc, resets, nil, clock.Now)
}

// intercept builds an interceptor over backend with the given factories.
func intercept(backend storage.Backend, factories ...pipeline.Factory) *pipeline.Interceptor {
	builder := pipeline.NewBuilder()
	for _, f := range factories {
		builder.Add(storage.ServiceDatastore, f)
	}
	return pipeline.New(backend, builder, nil)
}

func seedArticles(b interface{ Seed(...storage.Entity) }, n int) []storage.Entity {
	entities := make([]storage.Entity, n)
	for i := 0; i < n; i++ {
		entities[i] = storage.Entity{
			Key:   storage.NewKey("Article", string(rune('a'+i))),
			Props: map[string]any{"rank": int64(i)},
		}
	}
	b.Seed(entities...)
	return entities
}
