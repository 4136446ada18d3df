package strategies

import "github.com/goliatone/go-storage-cache/querycache"

// Strategy priorities, ascending order is outermost first.
const (
	PriorityQueryCache = 1000
	PriorityResetDate  = 1000
	PriorityKeysOnly   = PriorityQueryCache + 1000
	PriorityGetPut     = PriorityKeysOnly + 1000
	PriorityPutOnly    = PriorityKeysOnly + 1000
)

// sessionKind is written by session middleware on every request; caching
// its queries would invalidate constantly and help nobody.
const sessionKind = "_ah_SESSION"

// KindFilter decides which kinds the query-level strategies leave alone.
// Reserved kinds (double-underscore prefix), kindless queries, the
// session kind, and the watermark kind itself are always excluded.
type KindFilter struct {
	ignore map[string]struct{}
}

// NewKindFilter builds a filter from the configured extra kinds.
func NewKindFilter(extra []string) KindFilter {
	ignore := map[string]struct{}{
		sessionKind:              {},
		querycache.ResetDateKind: {},
	}
	for _, kind := range extra {
		ignore[kind] = struct{}{}
	}
	return KindFilter{ignore: ignore}
}

// Ignore reports whether the kind is excluded from caching.
func (f KindFilter) Ignore(kind string) bool {
	if kind == "" {
		return true
	}
	if len(kind) >= 2 && kind[:2] == "__" {
		return true
	}
	_, found := f.ignore[kind]
	return found
}
