package strategies

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/pipeline"
	"github.com/goliatone/go-storage-cache/storage"
)

// GetPutCacheStrategy caches entities one by one. Reads outside a
// transaction are resolved from the cache where possible, with only the
// missing keys forwarded to the backend; writes refresh the cache, with
// transactional writes parked until commit. Reads under a transaction pass
// straight through, because only the backend can mark the entity group for
// the transaction's consistency guarantees.
type GetPutCacheStrategy struct {
	pipeline.PassThrough

	entities entityCache
	log      logrus.FieldLogger

	// bookkeeping for partially served reads, keyed by the trimmed request
	// pointer: the post hook sees the exact request its pre hook produced,
	// so concurrent identical reads never collide
	pending *xsync.MapOf[*storage.GetRequest, pendingGet]
	underTx txBuffer
}

// pendingGet remembers what the caller originally asked for and what the
// cache already answered.
type pendingGet struct {
	keys   []storage.Key
	cached map[storage.Key]storage.Entity
}

// NewGetPutCacheStrategy returns a factory for the strategy.
func NewGetPutCacheStrategy(svc *cache.Service, logger logrus.FieldLogger) pipeline.Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func() pipeline.Strategy {
		return &GetPutCacheStrategy{
			entities: entityCache{cache: svc, log: logger},
			log:      logger,
			pending:  xsync.NewMapOf[*storage.GetRequest, pendingGet](),
			underTx:  newTxBuffer(),
		}
	}
}

// Priority places the strategy innermost, next to the backend.
func (s *GetPutCacheStrategy) Priority() int { return PriorityGetPut }

// PreGet serves what it can from the cache. A full hit short-circuits; a
// partial hit trims the request down to the missing keys and leaves a note
// for the post hook to merge the halves back together.
func (s *GetPutCacheStrategy) PreGet(ctx context.Context, req *storage.GetRequest) pipeline.Verdict {
	if req.Tx.Active() {
		return pipeline.Verdict{}
	}

	cached := s.entities.getAll(ctx, req.Keys)
	if len(cached) == len(req.Keys) {
		res := &storage.GetResponse{Entities: make([]*storage.Entity, len(req.Keys))}
		for i, key := range req.Keys {
			entity := cached[key]
			res.Entities[i] = &entity
		}
		s.log.WithField("keys", len(req.Keys)).Debug("read served entirely from cache")
		return pipeline.ShortCircuit(res)
	}

	missing := make([]storage.Key, 0, len(req.Keys)-len(cached))
	for _, key := range req.Keys {
		if _, ok := cached[key]; !ok {
			missing = append(missing, key)
		}
	}
	s.log.WithFields(logrus.Fields{"keys": len(req.Keys), "hits": len(cached)}).
		Debug("read partially served from cache")

	next := &storage.GetRequest{Keys: missing, Tx: req.Tx}
	s.pending.Store(next, pendingGet{keys: req.Keys, cached: cached})
	return pipeline.Rewrite(next)
}

// PostGet caches what the backend returned and, for a read this strategy
// trimmed, rebuilds the response the caller originally asked for.
func (s *GetPutCacheStrategy) PostGet(ctx context.Context, req *storage.GetRequest, res *storage.GetResponse) *storage.GetResponse {
	if req.Tx.Active() {
		return nil
	}

	found := collectResponse(req.Keys, res)
	s.entities.putAll(ctx, found)

	p, ok := s.pending.LoadAndDelete(req)
	if !ok {
		return nil
	}

	out := &storage.GetResponse{Entities: make([]*storage.Entity, len(p.keys))}
	for i, key := range p.keys {
		if entity, hit := p.cached[key]; hit {
			out.Entities[i] = &entity
			continue
		}
		if entity, hit := found[key]; hit {
			out.Entities[i] = &entity
		}
	}
	return out
}

// PostPut refreshes the cache with what was written. Under a transaction
// the entities are parked until the outcome is known.
func (s *GetPutCacheStrategy) PostPut(ctx context.Context, req *storage.PutRequest, res *storage.PutResponse) *storage.PutResponse {
	written := collectPut(req, res)
	if req.Tx.Active() {
		s.underTx.stash(req.Tx.Handle, written)
		return nil
	}
	s.entities.putAll(ctx, written)
	return nil
}

// PreDelete evicts the keys before the backend sees the delete.
func (s *GetPutCacheStrategy) PreDelete(ctx context.Context, req *storage.DeleteRequest) pipeline.Verdict {
	s.entities.remove(ctx, req.Keys)
	return pipeline.Verdict{}
}

// PostCommit releases the transaction's parked writes into the cache.
func (s *GetPutCacheStrategy) PostCommit(ctx context.Context, req *storage.CommitRequest, res *storage.CommitResponse) *storage.CommitResponse {
	if parked, ok := s.underTx.take(req.Tx.Handle); ok {
		s.entities.putAll(ctx, parked)
	}
	return nil
}

// PostRollback discards the transaction's parked writes.
func (s *GetPutCacheStrategy) PostRollback(ctx context.Context, req *storage.RollbackRequest, res *storage.RollbackResponse) *storage.RollbackResponse {
	s.underTx.drop(req.Tx.Handle)
	return nil
}
