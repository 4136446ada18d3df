package strategies

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/storage"
)

// QueryKeysOnlyStrategy rewrites full queries into keys-only queries and
// rebuilds the entities afterwards: cached ones from the entity cache,
// the rest with one batched read against the backend. The caller sees an
// ordinary full result; the backend only ever streams keys.
type QueryKeysOnlyStrategy struct {
	pipeline.PassThrough

	entities entityCache
	backend  storage.Backend
	log      logrus.FieldLogger

	// requests this instance rewrote, matched again by pointer in the post
	// hook, and the continuation cursors of their partial results
	rewritten *xsync.MapOf[*storage.RunQueryRequest, struct{}]
	cursors   *xsync.MapOf[storage.Cursor, struct{}]
}

// NewQueryKeysOnlyStrategy returns a factory for the strategy. backend is
// the raw storage backend used to load entities the cache does not hold;
// handing in the intercepted backend would recurse into the chain.
func NewQueryKeysOnlyStrategy(svc *cache.Service, backend storage.Backend, logger logrus.FieldLogger) pipeline.Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func() pipeline.Strategy {
		return &QueryKeysOnlyStrategy{
			entities:  entityCache{cache: svc, log: logger},
			backend:   backend,
			log:       logger,
			rewritten: xsync.NewMapOf[*storage.RunQueryRequest, struct{}](),
			cursors:   xsync.NewMapOf[storage.Cursor, struct{}](),
		}
	}
}

// Priority places the strategy between the query cache and the entity cache.
func (s *QueryKeysOnlyStrategy) Priority() int { return PriorityKeysOnly }

// PreRunQuery flips the query to keys-only. Queries that already are, and
// queries over reserved kinds, pass through untouched.
func (s *QueryKeysOnlyStrategy) PreRunQuery(ctx context.Context, req *storage.RunQueryRequest) pipeline.Verdict {
	if req.Query == nil || req.Query.KeysOnly {
		return pipeline.Verdict{}
	}
	if len(req.Query.Kind) >= 2 && req.Query.Kind[:2] == "__" {
		return pipeline.Verdict{}
	}

	q := req.Query.Clone()
	q.KeysOnly = true
	next := &storage.RunQueryRequest{Query: q}
	s.rewritten.Store(next, struct{}{})
	s.log.WithField("kind", q.Kind).Debug("rewrote query to keys only")
	return pipeline.Rewrite(next)
}

// PostRunQuery fleshes the keys-only result back out, but only for queries
// this instance rewrote.
func (s *QueryKeysOnlyStrategy) PostRunQuery(ctx context.Context, req *storage.RunQueryRequest, res *storage.QueryResult) *storage.QueryResult {
	if _, ours := s.rewritten.LoadAndDelete(req); !ours {
		return nil
	}
	if res.MoreResults && res.Cursor != "" {
		s.cursors.Store(res.Cursor, struct{}{})
	}
	return s.reconstruct(ctx, res)
}

// PostNext fleshes out continuation pages of queries this instance rewrote.
func (s *QueryKeysOnlyStrategy) PostNext(ctx context.Context, req *storage.NextRequest, res *storage.QueryResult) *storage.QueryResult {
	if _, ours := s.cursors.LoadAndDelete(req.Cursor); !ours {
		return nil
	}
	if res.MoreResults && res.Cursor != "" {
		s.cursors.Store(res.Cursor, struct{}{})
	}
	return s.reconstruct(ctx, res)
}

// reconstruct turns a keys-only result into a full one, preserving result
// order. Keys that resolve through neither the cache nor the backend are
// dropped from the result, matching what a full query would have returned
// had the entity been deleted mid-flight.
func (s *QueryKeysOnlyStrategy) reconstruct(ctx context.Context, res *storage.QueryResult) *storage.QueryResult {
	keys := res.Keys()
	cached := s.entities.getAll(ctx, keys)

	var missing []storage.Key
	for _, key := range keys {
		if _, ok := cached[key]; !ok {
			missing = append(missing, key)
		}
	}
	s.log.WithFields(logrus.Fields{"keys": len(keys), "hits": len(cached)}).
		Debug("reconstructing keys-only result")

	fetched := map[storage.Key]storage.Entity{}
	if len(missing) > 0 {
		got, err := s.backend.Get(ctx, &storage.GetRequest{Keys: missing})
		if err != nil {
			s.log.WithError(err).Warn("batch get for keys-only result failed")
		} else {
			fetched = collectResponse(missing, got)
			s.entities.putAll(ctx, fetched)
		}
	}

	out := &storage.QueryResult{
		KeysOnly:    false,
		MoreResults: res.MoreResults,
		Cursor:      res.Cursor,
		Entities:    make([]storage.Entity, 0, len(keys)),
	}
	for _, key := range keys {
		if entity, ok := cached[key]; ok {
			out.Entities = append(out.Entities, entity)
			continue
		}
		if entity, ok := fetched[key]; ok {
			out.Entities = append(out.Entities, entity)
			continue
		}
		s.log.WithField("key", key.Encode()).Warn("entity missing for keys-only result")
	}
	return out
}
