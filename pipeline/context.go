package pipeline

import "context"

// Context holds the live strategy instances for one interception scope,
// grouped by service and ordered outer to inner. Strategies keep their
// working state (rewritten requests, transaction buffers) on themselves, so
// a fresh Context starts every scope clean.
type Context struct {
	chains map[string][]Strategy
}

// Chain returns the ordered strategies registered for the service, or nil
// when the service is not intercepted.
func (c *Context) Chain(service string) []Strategy {
	if c == nil {
		return nil
	}
	return c.chains[service]
}

type pipelineCtxKey struct{}

// Attach binds the interception scope to a context.Context so calls made
// with the returned context share its strategy state.
func Attach(ctx context.Context, pc *Context) context.Context {
	return context.WithValue(ctx, pipelineCtxKey{}, pc)
}

// FromContext extracts the interception scope, if one was attached.
func FromContext(ctx context.Context) (*Context, bool) {
	pc, ok := ctx.Value(pipelineCtxKey{}).(*Context)
	return pc, ok
}
