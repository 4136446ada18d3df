package testsupport

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/goliatone/go-storage-cache/storage"
)

// MemoryBackend is an in-memory storage.Backend for tests. It executes
// structured queries, pages results through cursors, stages transactional
// writes until commit, and counts calls per operation so tests can assert
// exactly which calls reached it.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[storage.Key]storage.Entity
	txs      map[uint64]map[storage.Key]*storage.Entity
	cursors  map[storage.Cursor]cursorPage
	calls    map[storage.Op]int
	failures map[storage.Op]error
	nextTx   uint64
}

// cursorPage is the parked remainder of a paged query.
type cursorPage struct {
	rest     []storage.Entity
	limit    int
	keysOnly bool
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     map[storage.Key]storage.Entity{},
		txs:      map[uint64]map[storage.Key]*storage.Entity{},
		cursors:  map[storage.Cursor]cursorPage{},
		calls:    map[storage.Op]int{},
		failures: map[storage.Op]error{},
	}
}

// Seed stores entities directly, without counting a call.
func (b *MemoryBackend) Seed(entities ...storage.Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entities {
		b.data[e.Key] = e.Clone()
	}
}

// Calls reports how many times the operation reached the backend.
func (b *MemoryBackend) Calls(op storage.Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// FailWith makes the operation return err until cleared with a nil err.
func (b *MemoryBackend) FailWith(op storage.Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Begin opens a transaction and returns its handle.
func (b *MemoryBackend) Begin() storage.Tx {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTx++
	b.txs[b.nextTx] = map[storage.Key]*storage.Entity{}
	return storage.Tx{Handle: b.nextTx}
}

// Contents returns a copy of the committed entity under key, if any.
func (b *MemoryBackend) Contents(key storage.Key) (storage.Entity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.data[key]
	if !ok {
		return storage.Entity{}, false
	}
	return e.Clone(), true
}

func (b *MemoryBackend) enter(op storage.Op) error {
	b.calls[op]++
	return b.failures[op]
}

// Get implements storage.Backend.
func (b *MemoryBackend) Get(ctx context.Context, req *storage.GetRequest) (*storage.GetResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpGet); err != nil {
		return nil, err
	}
	res := &storage.GetResponse{Entities: make([]*storage.Entity, len(req.Keys))}
	for i, key := range req.Keys {
		if e, ok := b.data[key]; ok {
			clone := e.Clone()
			res.Entities[i] = &clone
		}
	}
	return res, nil
}

// Put implements storage.Backend. Incomplete keys get generated ids.
func (b *MemoryBackend) Put(ctx context.Context, req *storage.PutRequest) (*storage.PutResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpPut); err != nil {
		return nil, err
	}
	res := &storage.PutResponse{Keys: make([]storage.Key, len(req.Entities))}
	for i, e := range req.Entities {
		entity := e.Clone()
		if entity.Key.Incomplete() {
			entity.Key.ID = uuid.NewString()
		}
		res.Keys[i] = entity.Key
		if req.Tx.Active() {
			staged, ok := b.txs[req.Tx.Handle]
			if !ok {
				return nil, errors.Errorf("testsupport: unknown transaction %d", req.Tx.Handle)
			}
			staged[entity.Key] = &entity
			continue
		}
		b.data[entity.Key] = entity
	}
	return res, nil
}

// Delete implements storage.Backend.
func (b *MemoryBackend) Delete(ctx context.Context, req *storage.DeleteRequest) (*storage.DeleteResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpDelete); err != nil {
		return nil, err
	}
	for _, key := range req.Keys {
		if req.Tx.Active() {
			staged, ok := b.txs[req.Tx.Handle]
			if !ok {
				return nil, errors.Errorf("testsupport: unknown transaction %d", req.Tx.Handle)
			}
			staged[key] = nil
			continue
		}
		delete(b.data, key)
	}
	return &storage.DeleteResponse{}, nil
}

// RunQuery implements storage.Backend.
func (b *MemoryBackend) RunQuery(ctx context.Context, req *storage.RunQueryRequest) (*storage.QueryResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpRunQuery); err != nil {
		return nil, err
	}
	q := req.Query
	if q == nil {
		return nil, errors.New("testsupport: nil query")
	}

	var matched []storage.Entity
	for _, e := range b.data {
		if e.Key.Kind != q.Kind || e.Key.Namespace != q.Namespace {
			continue
		}
		if !matchesFilters(e, q.Filters) {
			continue
		}
		matched = append(matched, e.Clone())
	}
	sortEntities(matched, q.Orders)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	return b.page(matched, q.Limit, q.KeysOnly), nil
}

// Next implements storage.Backend.
func (b *MemoryBackend) Next(ctx context.Context, req *storage.NextRequest) (*storage.QueryResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpNext); err != nil {
		return nil, err
	}
	parked, ok := b.cursors[req.Cursor]
	if !ok {
		return nil, errors.Errorf("testsupport: unknown cursor %q", req.Cursor)
	}
	delete(b.cursors, req.Cursor)
	return b.page(parked.rest, parked.limit, parked.keysOnly), nil
}

// page splits off one page of up to limit entities and parks the rest
// behind a fresh cursor. A limit of zero means everything at once.
func (b *MemoryBackend) page(matched []storage.Entity, limit int, keysOnly bool) *storage.QueryResult {
	if keysOnly {
		for i := range matched {
			matched[i] = storage.Entity{Key: matched[i].Key}
		}
	}
	res := &storage.QueryResult{KeysOnly: keysOnly, Entities: matched}
	if limit > 0 && len(matched) > limit {
		res.Entities = matched[:limit]
		res.MoreResults = true
		res.Cursor = storage.Cursor(uuid.NewString())
		b.cursors[res.Cursor] = cursorPage{rest: matched[limit:], limit: limit, keysOnly: keysOnly}
	}
	return res
}

// Commit implements storage.Backend.
func (b *MemoryBackend) Commit(ctx context.Context, req *storage.CommitRequest) (*storage.CommitResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpCommit); err != nil {
		return nil, err
	}
	staged, ok := b.txs[req.Tx.Handle]
	if !ok {
		return nil, errors.Errorf("testsupport: unknown transaction %d", req.Tx.Handle)
	}
	for key, entity := range staged {
		if entity == nil {
			delete(b.data, key)
			continue
		}
		b.data[key] = *entity
	}
	delete(b.txs, req.Tx.Handle)
	return &storage.CommitResponse{}, nil
}

// Rollback implements storage.Backend.
func (b *MemoryBackend) Rollback(ctx context.Context, req *storage.RollbackRequest) (*storage.RollbackResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(storage.OpRollback); err != nil {
		return nil, err
	}
	if _, ok := b.txs[req.Tx.Handle]; !ok {
		return nil, errors.Errorf("testsupport: unknown transaction %d", req.Tx.Handle)
	}
	delete(b.txs, req.Tx.Handle)
	return &storage.RollbackResponse{}, nil
}

func matchesFilters(e storage.Entity, filters []storage.Filter) bool {
	for _, f := range filters {
		val, ok := e.Props[f.Property]
		if !ok {
			return false
		}
		cmp, ok := compareValues(val, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case storage.FilterEqual:
			if cmp != 0 {
				return false
			}
		case storage.FilterLess:
			if cmp >= 0 {
				return false
			}
		case storage.FilterLessEqual:
			if cmp > 0 {
				return false
			}
		case storage.FilterGreater:
			if cmp <= 0 {
				return false
			}
		case storage.FilterGreaterEqual:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortEntities(entities []storage.Entity, orders []storage.Order) {
	if len(orders) == 0 {
		sort.SliceStable(entities, func(i, j int) bool {
			return entities[i].Key.Encode() < entities[j].Key.Encode()
		})
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		for _, o := range orders {
			cmp, ok := compareValues(entities[i].Props[o.Property], entities[j].Props[o.Property])
			if !ok || cmp == 0 {
				continue
			}
			if o.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return entities[i].Key.Encode() < entities[j].Key.Encode()
	})
}

// compareValues compares two property values of the same general type.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	default:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
