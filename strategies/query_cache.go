package strategies

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/querycache"
	"github.com/goliatone/go-storage-cache/storage"
)

// QueryCacheStrategy caches whole query results. A repeated query is
// answered from the cache without touching the backend; any write to a
// kind invalidates every cached query for it through the kind's watermark.
type QueryCacheStrategy struct {
	pipeline.PassThrough

	queries     *querycache.QueryCache
	ignore      KindFilter
	resetIgnore KindFilter
	log         logrus.FieldLogger
}

// NewQueryCacheStrategy returns a factory for the strategy. ignore excludes
// kinds from result caching; resetIgnore excludes kinds from watermark
// bumping on write.
func NewQueryCacheStrategy(queries *querycache.QueryCache, ignore, resetIgnore KindFilter, logger logrus.FieldLogger) pipeline.Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func() pipeline.Strategy {
		return &QueryCacheStrategy{queries: queries, ignore: ignore, resetIgnore: resetIgnore, log: logger}
	}
}

// Priority places the strategy outermost.
func (s *QueryCacheStrategy) Priority() int { return PriorityQueryCache }

// PreRunQuery answers the query from the cache when a valid entry exists.
func (s *QueryCacheStrategy) PreRunQuery(ctx context.Context, req *storage.RunQueryRequest) pipeline.Verdict {
	if req.Query == nil || s.ignore.Ignore(req.Query.Kind) {
		return pipeline.Verdict{}
	}
	queryBytes, err := req.Query.Marshal()
	if err != nil {
		s.log.WithError(err).Warn("query serialization failed, skipping query cache")
		return pipeline.Verdict{}
	}
	data, ok := s.queries.GetQuery(ctx, req.Query.Kind, queryBytes)
	if !ok {
		return pipeline.Verdict{}
	}
	result, err := storage.UnmarshalQueryResult(data)
	if err != nil {
		s.log.WithError(err).WithField("kind", req.Query.Kind).Warn("cached query result is corrupt, ignoring it")
		return pipeline.Verdict{}
	}
	return pipeline.ShortCircuit(result)
}

// PostRunQuery caches the result. Partial pages are never cached: a result
// with more pages pending would be revalidated against a watermark that
// cannot distinguish pages.
func (s *QueryCacheStrategy) PostRunQuery(ctx context.Context, req *storage.RunQueryRequest, res *storage.QueryResult) *storage.QueryResult {
	if req.Query == nil || s.ignore.Ignore(req.Query.Kind) {
		return nil
	}
	if res.MoreResults {
		s.log.WithField("kind", req.Query.Kind).Debug("query has more results, not cached")
		return nil
	}
	queryBytes, err := req.Query.Marshal()
	if err != nil {
		s.log.WithError(err).Warn("query serialization failed, result not cached")
		return nil
	}
	resultBytes, err := res.Marshal()
	if err != nil {
		s.log.WithError(err).Warn("query result serialization failed, not cached")
		return nil
	}
	s.queries.PutQuery(ctx, req.Query.Kind, queryBytes, resultBytes)
	return nil
}

// PrePut invalidates cached queries for every kind the write touches.
func (s *QueryCacheStrategy) PrePut(ctx context.Context, req *storage.PutRequest) pipeline.Verdict {
	kinds := make(map[string]struct{}, len(req.Entities))
	for _, entity := range req.Entities {
		kinds[entity.Key.Kind] = struct{}{}
	}
	s.removeQueries(ctx, kinds)
	return pipeline.Verdict{}
}

// PreDelete invalidates cached queries for every kind the delete touches.
func (s *QueryCacheStrategy) PreDelete(ctx context.Context, req *storage.DeleteRequest) pipeline.Verdict {
	kinds := make(map[string]struct{}, len(req.Keys))
	for _, key := range req.Keys {
		kinds[key.Kind] = struct{}{}
	}
	s.removeQueries(ctx, kinds)
	return pipeline.Verdict{}
}

func (s *QueryCacheStrategy) removeQueries(ctx context.Context, kinds map[string]struct{}) {
	for kind := range kinds {
		if s.resetIgnore.Ignore(kind) {
			continue
		}
		s.log.WithField("kind", kind).Debug("invalidating cached queries")
		s.queries.RemoveQueries(ctx, kind)
	}
}
