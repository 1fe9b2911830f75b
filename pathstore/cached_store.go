package pathstore

import (
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// CachedStore puts a Cache in front of a store. Reads check the cache
// first and fall through on a miss without backfilling; the cache
// indexes paths already resolved, not the whole store. Writes go
// through to the store and then cache the store's resulting sample, so
// a write the store resolved differently (an out-of-date sample losing
// last-writer-wins) never leaves a stale cache entry. Enumeration
// always bypasses the cache.
type CachedStore struct {
	cache *Cache
	store Store
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps a store with a cache
func NewCachedStore(cache *Cache, store Store) *CachedStore {
	return &CachedStore{cache: cache, store: store}
}

// Sample returns the cached sample when present, otherwise reads the
// underlying store
func (cs *CachedStore) Sample(path Path) (*Sample, error) {
	if s, ok := cs.cache.Get(path); ok {
		return s, nil
	}
	return cs.store.Sample(path)
}

// SetSample writes through to the underlying store and caches what the
// store now holds at the path
func (cs *CachedStore) SetSample(path Path, s Sample) error {
	if err := cs.store.SetSample(path, stampNow(s)); err != nil {
		return err
	}
	current, err := cs.store.Sample(path)
	if err == nil && current != nil {
		cs.cache.Set(path, *current)
	}
	return nil
}

// EnumerateStatus queries the underlying store directly
func (cs *CachedStore) EnumerateStatus(model ModelKey, visit func(InstanceKey, Sample) bool) error {
	return cs.store.EnumerateStatus(model, visit)
}

// Codec returns the underlying store's codec
func (cs *CachedStore) Codec() codec.Codec {
	return cs.store.Codec()
}

// Cache exposes the cache, chiefly so callers can invalidate it
func (cs *CachedStore) Cache() *Cache {
	return cs.cache
}
