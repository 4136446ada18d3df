// Package cacheinfra holds the concrete cache-store adapters: the sturdyc
// client backing the process-local tier and the redis client backing the
// shared tier.
package cacheinfra

import (
	"sync"
	"time"

	"github.com/viccon/sturdyc"
)

// LocalConfig sizes the sturdyc client behind a LocalStore.
type LocalConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// LocalStore is the process-local tier: a sturdyc client of byte payloads.
// The tier is never expired per key by callers; Flush drops the whole store
// by swapping in a fresh client, which is how the coarse reset window is
// implemented one level up.
type LocalStore struct {
	mu     sync.RWMutex
	client *sturdyc.Client[[]byte]
	cfg    LocalConfig
}

// NewLocalStore builds a local store with the provided sizing.
func NewLocalStore(cfg LocalConfig) *LocalStore {
	return &LocalStore{
		client: newClient(cfg),
		cfg:    cfg,
	}
}

func newClient(cfg LocalConfig) *sturdyc.Client[[]byte] {
	return sturdyc.New[[]byte](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
}

// Get returns the value stored under key, if any.
func (s *LocalStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client.Get(key)
}

// Set stores the value under key.
func (s *LocalStore) Set(key string, value []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.client.Set(key, value)
}

// Delete removes the value stored under key.
func (s *LocalStore) Delete(key string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.client.Delete(key)
}

// Size reports how many entries the store currently holds.
func (s *LocalStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client.Size()
}

// Flush clears the store in full by replacing the backing client.
func (s *LocalStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = newClient(s.cfg)
}
