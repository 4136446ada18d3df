package pipeline

import "sort"

// Factory builds one strategy instance for a new interception scope.
type Factory func() Strategy

// Builder accumulates strategy factories per service and mints Contexts
// from them. Register everything up front; Builder is not synchronized.
type Builder struct {
	factories   map[string][]Factory
	checkpoints []func()
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{factories: map[string][]Factory{}}
}

// Add registers a strategy factory for the service. Order of registration
// does not matter; chains are sorted by Priority when a Context is built.
func (b *Builder) Add(service string, f Factory) *Builder {
	b.factories[service] = append(b.factories[service], f)
	return b
}

// OnNewContext registers a hook that runs every time a Context is minted.
// The cache layer uses this as its scope boundary, for example to decide
// whether the local tier's reset window has elapsed.
func (b *Builder) OnNewContext(fn func()) *Builder {
	b.checkpoints = append(b.checkpoints, fn)
	return b
}

// NewContext instantiates every registered strategy and returns the chains
// sorted ascending by Priority, so the lowest number sits outermost.
func (b *Builder) NewContext() *Context {
	chains := make(map[string][]Strategy, len(b.factories))
	for service, factories := range b.factories {
		chain := make([]Strategy, 0, len(factories))
		for _, f := range factories {
			chain = append(chain, f())
		}
		sort.SliceStable(chain, func(i, j int) bool {
			return chain[i].Priority() < chain[j].Priority()
		})
		chains[service] = chain
	}
	for _, fn := range b.checkpoints {
		fn()
	}
	return &Context{chains: chains}
}
