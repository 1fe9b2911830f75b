package pathstore

import (
	"fmt"
	"testing"
)

func cachePath(i int) Path {
	return NewPath(1, InstanceKey(i), 1)
}

func cacheSample(i int) Sample {
	return Sample{Data: []byte(fmt.Sprintf("v%d", i)), Date: Timestamp(i)}
}

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(10, 5)

	if _, ok := c.Get(cachePath(1)); ok {
		t.Error("hit on empty cache")
	}

	c.Set(cachePath(1), cacheSample(1))
	s, ok := c.Get(cachePath(1))
	if !ok {
		t.Fatal("miss after set")
	}
	if string(s.Data) != "v1" {
		t.Errorf("wrong sample: %q", s.Data)
	}
}

func TestCacheEvictionBound(t *testing.T) {
	const maxCount, keep = 10, 4
	c := NewCache(maxCount, keep)

	for i := 0; i < maxCount+1; i++ {
		c.Set(cachePath(i), cacheSample(i))
	}

	// The keep survivors plus the entry whose insert triggered eviction
	if c.Len() != keep+1 {
		t.Fatalf("after overflow: %d entries, want %d", c.Len(), keep+1)
	}
	if _, ok := c.Get(cachePath(maxCount)); !ok {
		t.Error("triggering entry was evicted")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(4, 2)
	for i := 0; i < 4; i++ {
		c.Set(cachePath(i), cacheSample(i))
	}

	// Touch the two oldest so the newest two become eviction candidates
	c.Get(cachePath(0))
	c.Get(cachePath(1))

	c.Set(cachePath(9), cacheSample(9))

	for _, want := range []int{0, 1, 9} {
		if _, ok := c.Get(cachePath(want)); !ok {
			t.Errorf("recently used entry %d evicted", want)
		}
	}
	for _, gone := range []int{2, 3} {
		if _, ok := c.Get(cachePath(gone)); ok {
			t.Errorf("stale entry %d survived", gone)
		}
	}
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c := NewCache(2, 1)
	c.Set(cachePath(1), cacheSample(1))
	c.Set(cachePath(2), cacheSample(2))

	// Replacing an existing path is not an insert
	c.Set(cachePath(1), cacheSample(100))

	if c.Len() != 2 {
		t.Errorf("overwrite changed size: %d", c.Len())
	}
	s, ok := c.Get(cachePath(1))
	if !ok || string(s.Data) != "v100" {
		t.Errorf("overwrite lost: %v %v", s, ok)
	}
}

func TestCacheRemoveAll(t *testing.T) {
	c := NewCache(10, 5)
	for i := 0; i < 5; i++ {
		c.Set(cachePath(i), cacheSample(i))
	}
	c.Remove(cachePath(0))
	if c.Len() != 4 {
		t.Errorf("Remove: %d entries left", c.Len())
	}
	c.RemoveAll()
	if c.Len() != 0 {
		t.Errorf("RemoveAll left %d entries", c.Len())
	}
}

func TestCacheRatioConstructor(t *testing.T) {
	c := NewCacheWithRatio(10, 0.8)
	for i := 0; i < 11; i++ {
		c.Set(cachePath(i), cacheSample(i))
	}
	if c.Len() != 9 {
		t.Errorf("ratio eviction left %d entries, want 9", c.Len())
	}
}
