package strategies

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-storage-cache/storage"
)

// txBuffer parks entities written under an open transaction until its
// outcome is known. Commit releases them to the cache, rollback discards
// them; either way nothing half-written ever becomes visible.
type txBuffer struct {
	m *xsync.MapOf[uint64, map[storage.Key]storage.Entity]
}

func newTxBuffer() txBuffer {
	return txBuffer{m: xsync.NewMapOf[uint64, map[storage.Key]storage.Entity]()}
}

// stash merges entities into the transaction's buffer.
func (b txBuffer) stash(handle uint64, entities map[storage.Key]storage.Entity) {
	if len(entities) == 0 {
		return
	}
	b.m.Compute(handle, func(old map[storage.Key]storage.Entity, loaded bool) (map[storage.Key]storage.Entity, bool) {
		if !loaded {
			old = make(map[storage.Key]storage.Entity, len(entities))
		}
		for key, entity := range entities {
			old[key] = entity
		}
		return old, false
	})
}

// take removes and returns the transaction's buffer.
func (b txBuffer) take(handle uint64) (map[storage.Key]storage.Entity, bool) {
	return b.m.LoadAndDelete(handle)
}

// drop discards the transaction's buffer.
func (b txBuffer) drop(handle uint64) {
	b.m.Delete(handle)
}
