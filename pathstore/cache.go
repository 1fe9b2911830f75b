package pathstore

import (
	"sort"
)

// Cache is a bounded recency-ordered map from Path to Sample. When an
// insert would exceed the maximum, one batched pass evicts the least
// recently used entries down to the configured keep level, amortizing
// eviction cost instead of paying it on every insert. Recency uses a
// monotonic counter rather than wall clock so accesses in the same
// clock tick still order.
type Cache struct {
	maxCount       int
	elementsToKeep int
	tick           uint64
	entries        map[Path]*cacheEntry
}

type cacheEntry struct {
	sample Sample
	access uint64
}

// NewCache creates a cache holding at most maxCount entries, evicting
// down to elementsToKeep on overflow
func NewCache(maxCount, elementsToKeep int) *Cache {
	if maxCount < 1 {
		maxCount = 1
	}
	if elementsToKeep < 0 {
		elementsToKeep = 0
	}
	if elementsToKeep >= maxCount {
		elementsToKeep = maxCount - 1
	}
	return &Cache{
		maxCount:       maxCount,
		elementsToKeep: elementsToKeep,
		entries:        make(map[Path]*cacheEntry),
	}
}

// NewCacheWithRatio creates a cache that keeps the given fraction of
// maxCount on overflow, e.g. 0.8 to evict a fifth of the cache at a
// time
func NewCacheWithRatio(maxCount int, keepRatio float64) *Cache {
	return NewCache(maxCount, int(float64(maxCount)*keepRatio))
}

// Get returns the cached sample for a path and refreshes its recency
func (c *Cache) Get(path Path) (*Sample, bool) {
	entry, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	c.tick++
	entry.access = c.tick
	out := entry.sample
	return &out, true
}

// Set inserts or replaces the sample for a path, evicting first when
// at capacity
func (c *Cache) Set(path Path, s Sample) {
	if entry, ok := c.entries[path]; ok {
		c.tick++
		entry.sample = s
		entry.access = c.tick
		return
	}
	if len(c.entries) >= c.maxCount {
		c.evict()
	}
	c.tick++
	c.entries[path] = &cacheEntry{sample: s, access: c.tick}
}

// evict removes least-recently-used entries until elementsToKeep remain
func (c *Cache) evict() {
	type access struct {
		path Path
		tick uint64
	}
	order := make([]access, 0, len(c.entries))
	for path, entry := range c.entries {
		order = append(order, access{path: path, tick: entry.access})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].tick < order[j].tick })

	for i := 0; i < len(order)-c.elementsToKeep; i++ {
		delete(c.entries, order[i].path)
	}
}

// Remove drops one path from the cache
func (c *Cache) Remove(path Path) {
	delete(c.entries, path)
}

// RemoveAll empties the cache
func (c *Cache) RemoveAll() {
	c.entries = make(map[Path]*cacheEntry)
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return len(c.entries)
}
