package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/cache"
)

// QueryCache maps (kind, serialized query) pairs to serialized results.
// Storage is delegated to the two-tier cache service; validity is decided
// against the kind's reset watermark.
type QueryCache struct {
	cache  *cache.Service
	resets *ResetDateStore
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewQueryCache builds a query cache. logger and clock may be nil.
func NewQueryCache(svc *cache.Service, resets *ResetDateStore, logger logrus.FieldLogger, clock func() time.Time) *QueryCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &QueryCache{cache: svc, resets: resets, log: logger, now: clock}
}

// QueryKey fingerprints the serialized query bytes into a cache key. The
// digest is cryptographic, so collisions are negligible even across kinds.
func QueryKey(queryBytes []byte) string {
	sum := sha256.Sum256(queryBytes)
	return queryKeyPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

// GetQuery returns the cached serialized result for the exact query, if one
// exists and no reset has happened for the kind since it was stored.
func (q *QueryCache) GetQuery(ctx context.Context, kind string, queryBytes []byte) ([]byte, bool) {
	item, ok := q.cache.GetItem(ctx, QueryKey(queryBytes))
	if !ok {
		q.log.WithField("kind", kind).Debug("query cache miss")
		return nil, false
	}
	if watermark, exists := q.resets.GetResetDate(ctx, kind); exists && !item.Timestamp.After(watermark) {
		q.log.WithField("kind", kind).Debug("query cache entry older than reset date")
		return nil, false
	}
	q.log.WithField("kind", kind).Debug("query cache hit")
	return item.Data, true
}

// PutQuery stores a serialized result under the query's fingerprint.
// Oversized results go through the chunked path inside the cache service.
func (q *QueryCache) PutQuery(ctx context.Context, kind string, queryBytes, resultBytes []byte) {
	key := QueryKey(queryBytes)
	q.cache.PutItem(ctx, key, cache.NewItem(resultBytes, q.now()))
	q.log.WithFields(logrus.Fields{"kind": kind, "key": key}).Debug("put query cache")
}

// RemoveQueries invalidates every cached query for the kind by bumping its
// watermark. Individual entries are never deleted.
func (q *QueryCache) RemoveQueries(ctx context.Context, kind string) {
	q.resets.PutResetDate(ctx, kind)
}
