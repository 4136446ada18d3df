package testsupport

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryShared is an in-memory stand-in for the shared cache tier. Entries
// expire against an injectable clock, and a configurable error can be
// forced onto every operation to exercise the best-effort paths.
type MemoryShared struct {
	entries *xsync.MapOf[string, sharedEntry]
	clock   func() time.Time
	gets    atomic.Int64
	puts    atomic.Int64

	mu  sync.Mutex
	err error
}

type sharedEntry struct {
	data    []byte
	expires time.Time
}

// NewMemoryShared builds a tier on the given clock; nil means time.Now.
func NewMemoryShared(clock func() time.Time) *MemoryShared {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryShared{
		entries: xsync.NewMapOf[string, sharedEntry](),
		clock:   clock,
	}
}

// FailWith makes every operation return err; nil restores normal service.
func (m *MemoryShared) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryShared) forced() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Gets reports how many single and batched reads have been made.
func (m *MemoryShared) Gets() int64 { return m.gets.Load() }

// Puts reports how many single and batched writes have been made.
func (m *MemoryShared) Puts() int64 { return m.puts.Load() }

// Len reports how many live entries the tier holds.
func (m *MemoryShared) Len() int {
	n := 0
	now := m.clock()
	m.entries.Range(func(_ string, e sharedEntry) bool {
		if e.expires.IsZero() || e.expires.After(now) {
			n++
		}
		return true
	})
	return n
}

func (m *MemoryShared) load(key string) ([]byte, bool) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !e.expires.After(m.clock()) {
		m.entries.Delete(key)
		return nil, false
	}
	return e.data, true
}

func (m *MemoryShared) store(key string, value []byte, ttl time.Duration) {
	entry := sharedEntry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = m.clock().Add(ttl)
	}
	m.entries.Store(key, entry)
}

// Get implements the shared tier contract.
func (m *MemoryShared) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.gets.Add(1)
	if err := m.forced(); err != nil {
		return nil, false, err
	}
	data, ok := m.load(key)
	return data, ok, nil
}

// GetAll implements the shared tier contract.
func (m *MemoryShared) GetAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.gets.Add(1)
	if err := m.forced(); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, ok := m.load(key); ok {
			out[key] = data
		}
	}
	return out, nil
}

// Put implements the shared tier contract.
func (m *MemoryShared) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.puts.Add(1)
	if err := m.forced(); err != nil {
		return err
	}
	m.store(key, value, ttl)
	return nil
}

// PutAll implements the shared tier contract.
func (m *MemoryShared) PutAll(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	m.puts.Add(1)
	if err := m.forced(); err != nil {
		return err
	}
	for key, value := range values {
		m.store(key, value, ttl)
	}
	return nil
}

// Delete implements the shared tier contract.
func (m *MemoryShared) Delete(ctx context.Context, keys ...string) error {
	if err := m.forced(); err != nil {
		return err
	}
	for _, key := range keys {
		m.entries.Delete(key)
	}
	return nil
}

// Contains implements the shared tier contract.
func (m *MemoryShared) Contains(ctx context.Context, key string) (bool, error) {
	if err := m.forced(); err != nil {
		return false, err
	}
	_, ok := m.load(key)
	return ok, nil
}

// Clear implements the shared tier contract.
func (m *MemoryShared) Clear(ctx context.Context) error {
	if err := m.forced(); err != nil {
		return err
	}
	m.entries.Clear()
	return nil
}

// HasKeyWithPrefix reports whether any live key starts with prefix.
func (m *MemoryShared) HasKeyWithPrefix(prefix string) bool {
	found := false
	m.entries.Range(func(key string, _ sharedEntry) bool {
		if strings.HasPrefix(key, prefix) {
			found = true
			return false
		}
		return true
	})
	return found
}
