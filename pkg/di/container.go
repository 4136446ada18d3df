// Package di wires the caching components together. It manages the shared
// singletons (cache service, query cache, watermark store) and assembles
// the default strategy chain, so applications install the interception
// layer with a couple of calls instead of hand-wiring every collaborator.
package di

import (
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/config"
	"github.com/goliatone/go-storage-cache/internal/cacheinfra"
	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/querycache"
	"github.com/goliatone/go-storage-cache/storage"
	"github.com/goliatone/go-storage-cache/strategies"
)

// Container provides dependency injection for the caching layer. It holds
// singleton instances of the cache service, the query cache, and the
// watermark store, plus the strategy builder the interceptor is minted
// from.
type Container struct {
	cfg       config.Config
	backend   storage.Backend
	cache     *cache.Service
	resets    *querycache.ResetDateStore
	queries   *querycache.QueryCache
	builder   *pipeline.Builder
	installed *pipeline.Interceptor
	log       logrus.FieldLogger
}

// NewContainer builds a container over the raw backend and shared cache
// tier. The default chain rewrites queries to keys-only and caches entities
// on read and write; use AddQueryCache or AddResetDate to opt into the
// query-level strategies. logger may be nil.
func NewContainer(backend storage.Backend, shared cache.SharedCache, cfg config.Config, logger logrus.FieldLogger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Namespace = cfg.Namespace
	cacheCfg.SharedTTL = cfg.ExpireTTL()
	cacheCfg.LocalResetTTL = cfg.LocalResetTTL
	cacheCfg.ChunkSize = cfg.ChunkSize
	cacheCfg.Logger = logger

	svc, err := cache.NewService(shared, cacheCfg)
	if err != nil {
		return nil, err
	}

	resets := querycache.NewResetDateStore(svc, backend, logger, nil)
	queries := querycache.NewQueryCache(svc, resets, logger, nil)

	builder := pipeline.NewBuilder()
	builder.OnNewContext(svc.ResetLocal)
	builder.Add(storage.ServiceDatastore, strategies.NewQueryKeysOnlyStrategy(svc, backend, logger))
	builder.Add(storage.ServiceDatastore, strategies.NewGetPutCacheStrategy(svc, logger))

	return &Container{
		cfg:     cfg,
		backend: backend,
		cache:   svc,
		resets:  resets,
		queries: queries,
		builder: builder,
		log:     logger,
	}, nil
}

// NewContainerWithRedis is a convenience constructor that adapts a redis
// client into the shared tier, namespaced under the configured namespace
// and bounded by the configured shared-cache timeout.
func NewContainerWithRedis(backend storage.Backend, client redis.Cmdable, cfg config.Config, logger logrus.FieldLogger) (*Container, error) {
	shared := cacheinfra.NewRedisShared(client, cfg.Namespace, cfg.SharedTimeout)
	return NewContainer(backend, shared, cfg, logger)
}

// AddQueryCache registers the whole-result query caching strategy, wired
// with the configured kind exclusions.
func (c *Container) AddQueryCache() *Container {
	ignore := strategies.NewKindFilter(c.cfg.IgnoreKinds)
	resetIgnore := strategies.NewKindFilter(c.cfg.ResetIgnoreKinds)
	c.builder.Add(storage.ServiceDatastore, strategies.NewQueryCacheStrategy(c.queries, ignore, resetIgnore, c.log))
	return c
}

// AddResetDate registers the watermark-only strategy for applications that
// read cached query results through their own data layer.
func (c *Container) AddResetDate() *Container {
	ignore := strategies.NewKindFilter(c.cfg.ResetIgnoreKinds)
	c.builder.Add(storage.ServiceDatastore, strategies.NewResetDateStrategy(c.queries, ignore, c.log))
	return c
}

// AddStrategy registers a custom strategy factory for a service.
func (c *Container) AddStrategy(service string, f pipeline.Factory) *Container {
	c.builder.Add(service, f)
	return c
}

// Install wraps the backend in the interception layer. Installing twice
// returns the interceptor already in place.
func (c *Container) Install() *pipeline.Interceptor {
	if c.installed == nil {
		c.installed = pipeline.Install(c.backend, c.builder, c.log)
	}
	return c.installed
}

// CacheService returns the singleton two-tier cache service.
func (c *Container) CacheService() *cache.Service {
	return c.cache
}

// QueryCache returns the singleton query cache.
func (c *Container) QueryCache() *querycache.QueryCache {
	return c.queries
}

// ResetDates returns the singleton watermark store.
func (c *Container) ResetDates() *querycache.ResetDateStore {
	return c.resets
}

// Builder returns the strategy builder, for advanced chain setup before
// Install is called.
func (c *Container) Builder() *pipeline.Builder {
	return c.builder
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.cfg
}
