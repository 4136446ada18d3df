package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/storage"
)

// Interceptor fronts a real backend and runs every call through the
// strategy chain for its service. It satisfies storage.Backend, so callers
// swap it in wherever they held the backend before.
type Interceptor struct {
	parent  storage.Backend
	builder *Builder
	log     logrus.FieldLogger

	// scope used for calls whose context carries none of its own
	shared *Context
}

// New wraps the backend. logger may be nil.
func New(backend storage.Backend, builder *Builder, logger logrus.FieldLogger) *Interceptor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Interceptor{
		parent:  backend,
		builder: builder,
		log:     logger,
		shared:  builder.NewContext(),
	}
}

// Parent returns the wrapped backend.
func (i *Interceptor) Parent() storage.Backend {
	return i.parent
}

// NewScope attaches a fresh interception scope to the context. Callers that
// want per-request strategy state (one scope per HTTP request, say) call
// this at the boundary and use the returned context for every storage call
// inside it. Calls without a scope share a process-wide one.
func (i *Interceptor) NewScope(ctx context.Context) context.Context {
	return Attach(ctx, i.builder.NewContext())
}

func (i *Interceptor) scope(ctx context.Context) *Context {
	if pc, ok := FromContext(ctx); ok {
		return pc
	}
	return i.shared
}

// frame pairs a strategy with the request exactly as its pre hook left it,
// which is what its post hook must observe.
type frame struct {
	strategy Strategy
	req      storage.Request
}

// runPres walks the chain outer to inner. It returns the frames whose post
// hooks are owed a callback, the innermost request, and the short-circuit
// response if a strategy produced one. The short-circuiting strategy gets
// no frame: its own post hook is skipped, like the strategies inside it.
func (i *Interceptor) runPres(ctx context.Context, chain []Strategy, req storage.Request) ([]frame, storage.Request, storage.Response) {
	frames := make([]frame, 0, len(chain))
	cur := req
	for _, s := range chain {
		v := runPre(ctx, s, cur)
		if v.Response != nil {
			i.log.WithFields(logrus.Fields{"op": cur.Op(), "strategy": s.Priority()}).
				Debug("call short-circuited")
			return frames, cur, v.Response
		}
		if v.Request != nil {
			cur = v.Request
		}
		frames = append(frames, frame{strategy: s, req: cur})
	}
	return frames, cur, nil
}

// applyPosts unwinds the frames inner to outer.
func applyPosts(ctx context.Context, frames []frame, res storage.Response) storage.Response {
	for n := len(frames) - 1; n >= 0; n-- {
		if out := runPost(ctx, frames[n].strategy, frames[n].req, res); out != nil {
			res = out
		}
	}
	return res
}

// call runs one request through the chain synchronously.
func (i *Interceptor) call(ctx context.Context, req storage.Request) (storage.Response, error) {
	chain := i.scope(ctx).Chain(req.Service())
	if len(chain) == 0 {
		return storage.Dispatch(ctx, i.parent, req)
	}

	frames, inner, short := i.runPres(ctx, chain, req)
	res := short
	if res == nil {
		var err error
		res, err = storage.Dispatch(ctx, i.parent, inner)
		if err != nil {
			return nil, err
		}
	}
	return applyPosts(ctx, frames, res), nil
}

// CallAsync runs one request through the chain without blocking on the
// backend. Pre hooks run before CallAsync returns, so their side effects
// (cache invalidation in particular) are ordered with the caller; the
// backend round trip and the post hooks happen on the future.
func (i *Interceptor) CallAsync(ctx context.Context, req storage.Request) *Future {
	chain := i.scope(ctx).Chain(req.Service())
	if len(chain) == 0 {
		f := newFuture()
		go func() {
			f.resolve(storage.Dispatch(ctx, i.parent, req))
		}()
		return f
	}

	frames, inner, short := i.runPres(ctx, chain, req)
	if short != nil {
		return resolvedFuture(applyPosts(ctx, frames, short), nil)
	}

	f := newFuture()
	go func() {
		res, err := storage.Dispatch(ctx, i.parent, inner)
		if err != nil {
			f.resolve(nil, err)
			return
		}
		f.resolve(applyPosts(ctx, frames, res), nil)
	}()
	return f
}

// Get implements storage.Backend.
func (i *Interceptor) Get(ctx context.Context, req *storage.GetRequest) (*storage.GetResponse, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.GetResponse), nil
}

// Put implements storage.Backend.
func (i *Interceptor) Put(ctx context.Context, req *storage.PutRequest) (*storage.PutResponse, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.PutResponse), nil
}

// Delete implements storage.Backend.
func (i *Interceptor) Delete(ctx context.Context, req *storage.DeleteRequest) (*storage.DeleteResponse, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.DeleteResponse), nil
}

// RunQuery implements storage.Backend.
func (i *Interceptor) RunQuery(ctx context.Context, req *storage.RunQueryRequest) (*storage.QueryResult, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.QueryResult), nil
}

// Next implements storage.Backend.
func (i *Interceptor) Next(ctx context.Context, req *storage.NextRequest) (*storage.QueryResult, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.QueryResult), nil
}

// Commit implements storage.Backend.
func (i *Interceptor) Commit(ctx context.Context, req *storage.CommitRequest) (*storage.CommitResponse, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.CommitResponse), nil
}

// Rollback implements storage.Backend.
func (i *Interceptor) Rollback(ctx context.Context, req *storage.RollbackRequest) (*storage.RollbackResponse, error) {
	res, err := i.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*storage.RollbackResponse), nil
}
