package querycache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/storage"
)

// Durable record layout and cache key namespaces for reset watermarks.
const (
	// ResetDateKind is the backend kind reset records are persisted under.
	ResetDateKind = "CacheReset"

	// ResetDateProp is the property holding the watermark timestamp.
	ResetDateProp = "resetDate"

	resetDateCachePrefix = "CacheResetDate:"
	queryKeyPrefix       = "RunQuery:"
)

// watermarkName is the shared identifier of a kind's watermark: the durable
// record id and the suffix of its cache key.
func watermarkName(kind string) string {
	return queryKeyPrefix + kind
}

// ResetDateStore reads and writes per-kind invalidation watermarks. The
// cached copy serves the hot path; the durable record in the backend is the
// fallback source of truth when the cache has evicted it.
type ResetDateStore struct {
	cache   *cache.Service
	backend storage.Backend
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewResetDateStore builds a store over the cache service and the raw
// backend. logger and clock may be nil.
func NewResetDateStore(svc *cache.Service, backend storage.Backend, logger logrus.FieldLogger, clock func() time.Time) *ResetDateStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResetDateStore{cache: svc, backend: backend, log: logger, now: clock}
}

// PutResetDate stamps "now" as the kind's watermark, both durably and in
// the cache. A durable write failure is logged and swallowed: the cached
// copy still invalidates for the remainder of its TTL, so the failure
// degrades freshness rather than correctness.
func (s *ResetDateStore) PutResetDate(ctx context.Context, kind string) {
	name := watermarkName(kind)
	now := s.now()

	// The durable write goes straight to the backend. Routing it through
	// the pipeline would bump watermarks for the reset kind itself.
	_, err := s.backend.Put(ctx, &storage.PutRequest{
		Entities: []storage.Entity{{
			Key:   storage.Key{Kind: ResetDateKind, ID: name},
			Props: map[string]any{ResetDateProp: now},
		}},
	})
	if err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("durable reset date write failed")
	}

	s.putCached(ctx, name, now)
	s.log.WithField("kind", kind).Debug("put reset date")
}

// GetResetDate returns the kind's watermark, cache-first with a durable
// fallback that repopulates the cache. ok is false when no write has ever
// invalidated the kind.
func (s *ResetDateStore) GetResetDate(ctx context.Context, kind string) (time.Time, bool) {
	name := watermarkName(kind)

	if data, hit := s.cache.Get(ctx, resetDateCachePrefix+name); hit {
		var t time.Time
		if err := msgpack.Unmarshal(data, &t); err == nil {
			return t, true
		}
		s.log.WithField("kind", kind).Warn("cached reset date is corrupt, reloading")
	}

	res, err := s.backend.Get(ctx, &storage.GetRequest{
		Keys: []storage.Key{{Kind: ResetDateKind, ID: name}},
	})
	if err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("durable reset date read failed")
		return time.Time{}, false
	}
	if len(res.Entities) == 0 || res.Entities[0] == nil {
		return time.Time{}, false
	}
	t, ok := res.Entities[0].Props[ResetDateProp].(time.Time)
	if !ok {
		return time.Time{}, false
	}
	s.putCached(ctx, name, t)
	s.log.WithField("kind", kind).Debug("reset date loaded from backend")
	return t, true
}

func (s *ResetDateStore) putCached(ctx context.Context, name string, t time.Time) {
	data, err := msgpack.Marshal(t)
	if err != nil {
		s.log.WithError(err).Warn("reset date encode failed")
		return
	}
	s.cache.Put(ctx, resetDateCachePrefix+name, data)
}
