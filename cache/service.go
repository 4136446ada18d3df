package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/internal/cacheinfra"
)

// namespacePrefix qualifies local-tier keys when a namespace is active.
const namespacePrefix = "__ns:"

// SharedCache is the distributed tier behind the service. Implementations
// are best-effort: every operation takes a context that carries the
// shared-cache deadline, and values are opaque byte payloads.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetAll(ctx context.Context, keys []string) (map[string][]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	PutAll(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Contains(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
}

// Service is the two-tier cache. Reads consult the local tier, then the
// shared tier; writes land locally and are pushed to the shared tier
// best-effort. Oversized values are chunked on the shared tier only; the
// local tier always holds the assembled payload.
type Service struct {
	shared  SharedCache
	local   *cacheinfra.LocalStore
	metrics *serviceMetrics
	log     logrus.FieldLogger
	now     func() time.Time

	cfg Config

	mu        sync.Mutex
	lastReset time.Time
	localUsed bool
}

// NewService validates the configuration and builds the service on top of
// the given shared tier.
func NewService(shared SharedCache, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		shared: shared,
		local: cacheinfra.NewLocalStore(cacheinfra.LocalConfig{
			Capacity:           cfg.LocalCapacity,
			NumShards:          cfg.LocalShards,
			TTL:                cfg.LocalResetTTL,
			EvictionPercentage: cfg.LocalEvictionPercentage,
		}),
		metrics:   newServiceMetrics(cfg.Registerer),
		log:       log,
		now:       now,
		cfg:       cfg,
		lastReset: now(),
		localUsed: true,
	}, nil
}

// localKey qualifies a raw key with the active namespace.
func (s *Service) localKey(key string) string {
	if s.cfg.Namespace == "" {
		return key
	}
	return namespacePrefix + s.cfg.Namespace + "__" + key
}

func (s *Service) localEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localUsed
}

// UseLocal toggles the local tier. When disabled every operation degrades
// to direct shared-tier access.
func (s *Service) UseLocal(flag bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localUsed = flag
}

// ResetLocal clears the entire local tier once the reset window has
// elapsed. This is a coarse whole-map reset, intended to be called at a
// checkpoint such as call-context start.
func (s *Service) ResetLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Sub(s.lastReset) > s.cfg.LocalResetTTL {
		s.local.Flush()
		s.lastReset = s.now()
	}
}

// LocalHits reports how many lookups the local tier has served.
func (s *Service) LocalHits() int64 {
	return s.metrics.localHits.Load()
}

// SharedHits reports how many lookups the shared tier has served.
func (s *Service) SharedHits() int64 {
	return s.metrics.sharedHits.Load()
}

// Get returns the value under key, consulting the local tier first. A
// shared-tier hit repopulates the local tier. Chunked values are
// reassembled; a missing chunk makes the whole lookup a miss.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	useLocal := s.localEnabled()
	lk := s.localKey(key)
	if useLocal {
		if val, ok := s.local.Get(lk); ok {
			s.metrics.localHit()
			return val, true
		}
	}

	val, ok, err := s.shared.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("shared cache get failed, treating as miss")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if _, chunkKeys, isChunk := parseChunkIndex(val); isChunk {
		val, ok = s.assemble(ctx, chunkKeys)
		if !ok {
			s.log.WithField("key", key).Debug("cache chunk miss")
			return nil, false
		}
	}
	if useLocal {
		s.local.Set(lk, val)
	}
	s.metrics.sharedHit()
	return val, true
}

// GetAll resolves each key through both tiers. Keys missing from both
// tiers are simply absent from the result.
func (s *Service) GetAll(ctx context.Context, keys []string) map[string][]byte {
	result := make(map[string][]byte, len(keys))
	useLocal := s.localEnabled()

	var sharedKeys []string
	for _, key := range keys {
		if useLocal {
			if val, ok := s.local.Get(s.localKey(key)); ok {
				result[key] = val
				s.metrics.localHit()
				continue
			}
		}
		sharedKeys = append(sharedKeys, key)
	}
	if len(sharedKeys) == 0 {
		return result
	}

	found, err := s.shared.GetAll(ctx, sharedKeys)
	if err != nil {
		s.log.WithError(err).Warn("shared cache getAll failed, treating as miss")
		return result
	}
	for key, val := range found {
		if _, chunkKeys, isChunk := parseChunkIndex(val); isChunk {
			assembled, ok := s.assemble(ctx, chunkKeys)
			if !ok {
				continue
			}
			val = assembled
		}
		result[key] = val
		if useLocal {
			s.local.Set(s.localKey(key), val)
		}
		s.metrics.sharedHit()
	}
	return result
}

// Put stores a raw binary payload under key.
func (s *Service) Put(ctx context.Context, key string, value []byte) {
	s.putTagged(ctx, key, value, TagBinary)
}

// PutItem stores a timestamped item through the serialized-object path.
func (s *Service) PutItem(ctx context.Context, key string, item *Item) {
	data, err := item.Encode()
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("item encode failed, not cached")
		return
	}
	s.putTagged(ctx, key, data, TagObject)
}

// GetItem fetches and decodes an item. A payload that does not decode as
// an item is treated as a miss.
func (s *Service) GetItem(ctx context.Context, key string) (*Item, bool) {
	data, ok := s.Get(ctx, key)
	if !ok {
		return nil, false
	}
	item, err := DecodeItem(data)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cached value is not an item, treating as miss")
		return nil, false
	}
	return item, true
}

func (s *Service) putTagged(ctx context.Context, key string, value []byte, tag byte) {
	if s.localEnabled() {
		s.local.Set(s.localKey(key), value)
	}
	if err := s.putShared(ctx, key, value, tag); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("shared cache put failed, local tier only")
	}
}

func (s *Service) putShared(ctx context.Context, key string, value []byte, tag byte) error {
	if len(value) <= s.cfg.ChunkSize {
		return s.shared.Put(ctx, key, value, s.cfg.SharedTTL)
	}

	chunks := SplitChunks(value, s.cfg.ChunkSize)
	batch := make(map[string][]byte, len(chunks)+1)
	chunkKeys := make([]string, len(chunks))
	for i, chunk := range chunks {
		ck := chunkKey(i, key)
		chunkKeys[i] = ck
		batch[ck] = chunk
	}
	batch[key] = encodeChunkIndex(tag, chunkKeys)
	return s.shared.PutAll(ctx, batch, s.cfg.SharedTTL)
}

// PutAll stores every pair, chunking oversized values individually.
func (s *Service) PutAll(ctx context.Context, values map[string][]byte) {
	useLocal := s.localEnabled()
	direct := make(map[string][]byte, len(values))
	for key, val := range values {
		if useLocal {
			s.local.Set(s.localKey(key), val)
		}
		if len(val) > s.cfg.ChunkSize {
			if err := s.putShared(ctx, key, val, TagBinary); err != nil {
				s.log.WithError(err).WithField("key", key).Warn("shared cache put failed, local tier only")
			}
			continue
		}
		direct[key] = val
	}
	if len(direct) == 0 {
		return
	}
	if err := s.shared.PutAll(ctx, direct, s.cfg.SharedTTL); err != nil {
		s.log.WithError(err).Warn("shared cache putAll failed, local tier only")
	}
}

// Remove drops the key from both tiers.
func (s *Service) Remove(ctx context.Context, keys ...string) {
	for _, key := range keys {
		s.local.Delete(s.localKey(key))
	}
	if err := s.shared.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).Warn("shared cache delete failed")
	}
}

// Contains reports whether either tier holds the key.
func (s *Service) Contains(ctx context.Context, key string) bool {
	if s.localEnabled() {
		if _, ok := s.local.Get(s.localKey(key)); ok {
			return true
		}
	}
	ok, err := s.shared.Contains(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("shared cache contains failed")
		return false
	}
	return ok
}

// Clear empties both tiers.
func (s *Service) Clear(ctx context.Context) {
	s.local.Flush()
	s.mu.Lock()
	s.lastReset = s.now()
	s.mu.Unlock()
	if err := s.shared.Clear(ctx); err != nil {
		s.log.WithError(err).Warn("shared cache clear failed")
	}
}

// assemble reloads and joins the chunks named by an index record. Any
// missing chunk fails the whole assembly.
func (s *Service) assemble(ctx context.Context, chunkKeys []string) ([]byte, bool) {
	if len(chunkKeys) == 0 {
		return nil, false
	}
	found, err := s.shared.GetAll(ctx, chunkKeys)
	if err != nil {
		s.log.WithError(err).Warn("shared cache chunk fetch failed")
		return nil, false
	}
	chunks := make([][]byte, len(chunkKeys))
	for i, ck := range chunkKeys {
		chunk, ok := found[ck]
		if !ok {
			return nil, false
		}
		chunks[i] = chunk
	}
	return JoinChunks(chunks), true
}
