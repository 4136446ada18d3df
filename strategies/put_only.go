package strategies

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/storage"
)

// PutCacheStrategy keeps the entity cache fresh without ever serving reads
// from it. Applications that batch reads concurrently and consult the cache
// in their own data layer use this instead of GetPutCacheStrategy, so the
// interception side never serializes their parallel reads behind cache
// lookups.
type PutCacheStrategy struct {
	pipeline.PassThrough

	entities entityCache
	log      logrus.FieldLogger
	underTx  txBuffer
}

// NewPutCacheStrategy returns a factory for the strategy.
func NewPutCacheStrategy(svc *cache.Service, logger logrus.FieldLogger) pipeline.Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func() pipeline.Strategy {
		return &PutCacheStrategy{
			entities: entityCache{cache: svc, log: logger},
			log:      logger,
			underTx:  newTxBuffer(),
		}
	}
}

// Priority places the strategy innermost, next to the backend.
func (s *PutCacheStrategy) Priority() int { return PriorityPutOnly }

// PostGet caches whatever a non-transactional read returned.
func (s *PutCacheStrategy) PostGet(ctx context.Context, req *storage.GetRequest, res *storage.GetResponse) *storage.GetResponse {
	if req.Tx.Active() {
		return nil
	}
	s.entities.putAll(ctx, collectResponse(req.Keys, res))
	return nil
}

// PostPut refreshes the cache with what was written, parking transactional
// writes until the outcome is known.
func (s *PutCacheStrategy) PostPut(ctx context.Context, req *storage.PutRequest, res *storage.PutResponse) *storage.PutResponse {
	written := collectPut(req, res)
	if req.Tx.Active() {
		s.underTx.stash(req.Tx.Handle, written)
		return nil
	}
	s.entities.putAll(ctx, written)
	return nil
}

// PreDelete evicts the keys before the backend sees the delete.
func (s *PutCacheStrategy) PreDelete(ctx context.Context, req *storage.DeleteRequest) pipeline.Verdict {
	s.entities.remove(ctx, req.Keys)
	return pipeline.Verdict{}
}

// PostCommit releases the transaction's parked writes into the cache.
func (s *PutCacheStrategy) PostCommit(ctx context.Context, req *storage.CommitRequest, res *storage.CommitResponse) *storage.CommitResponse {
	if parked, ok := s.underTx.take(req.Tx.Handle); ok {
		s.entities.putAll(ctx, parked)
	}
	return nil
}

// PostRollback discards the transaction's parked writes.
func (s *PutCacheStrategy) PostRollback(ctx context.Context, req *storage.RollbackRequest, res *storage.RollbackResponse) *storage.RollbackResponse {
	s.underTx.drop(req.Tx.Handle)
	return nil
}
