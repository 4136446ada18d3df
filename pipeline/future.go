package pipeline

import (
	"context"
	"sync"

	"github.com/goliatone/go-storage-cache/storage"
)

// Future is the pending result of a CallAsync. Get blocks until the call
// resolves or the context is done, whichever comes first; after the first
// resolution the result is stable across repeated Gets.
type Future struct {
	done chan struct{}
	once sync.Once
	res  storage.Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(res storage.Response, err error) *Future {
	f := newFuture()
	f.resolve(res, err)
	return f
}

func (f *Future) resolve(res storage.Response, err error) {
	f.once.Do(func() {
		f.res = res
		f.err = err
		close(f.done)
	})
}

// Get waits for the result.
func (f *Future) Get(ctx context.Context) (storage.Response, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether the call has resolved without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
