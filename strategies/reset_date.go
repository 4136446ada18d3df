package strategies

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/querycache"
	"github.com/goliatone/go-storage-cache/storage"
)

// ResetDateStrategy bumps the per-kind watermark on every write without
// caching anything itself. It is the right query-level strategy when the
// application reads cached query results through its own data access layer
// and only needs the interception side to keep watermarks honest.
type ResetDateStrategy struct {
	pipeline.PassThrough

	queries *querycache.QueryCache
	ignore  KindFilter
	log     logrus.FieldLogger
}

// NewResetDateStrategy returns a factory for the strategy.
func NewResetDateStrategy(queries *querycache.QueryCache, ignore KindFilter, logger logrus.FieldLogger) pipeline.Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func() pipeline.Strategy {
		return &ResetDateStrategy{queries: queries, ignore: ignore, log: logger}
	}
}

// Priority places the strategy outermost, alongside the query cache.
func (s *ResetDateStrategy) Priority() int { return PriorityResetDate }

// PrePut bumps the watermark for every kind the write touches.
func (s *ResetDateStrategy) PrePut(ctx context.Context, req *storage.PutRequest) pipeline.Verdict {
	kinds := make(map[string]struct{}, len(req.Entities))
	for _, entity := range req.Entities {
		kinds[entity.Key.Kind] = struct{}{}
	}
	s.bump(ctx, kinds)
	return pipeline.Verdict{}
}

// PreDelete bumps the watermark for every kind the delete touches.
func (s *ResetDateStrategy) PreDelete(ctx context.Context, req *storage.DeleteRequest) pipeline.Verdict {
	kinds := make(map[string]struct{}, len(req.Keys))
	for _, key := range req.Keys {
		kinds[key.Kind] = struct{}{}
	}
	s.bump(ctx, kinds)
	return pipeline.Verdict{}
}

func (s *ResetDateStrategy) bump(ctx context.Context, kinds map[string]struct{}) {
	for kind := range kinds {
		if s.ignore.Ignore(kind) {
			continue
		}
		s.log.WithField("kind", kind).Debug("bumping reset date")
		s.queries.RemoveQueries(ctx, kind)
	}
}
