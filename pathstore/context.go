package pathstore

import (
	"sort"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// EditingContext buffers writes in an overlay on top of a timestamped
// store. Reads merge the overlay with the underlying state as of the
// reference instant T0; nothing reaches the underlying store until
// Commit. The zero instant makes a live context: underlying reads
// always see the latest state, so concurrent writes show through
// immediately. A snapshot context freezes T0 at creation and advances
// it only on Commit, giving edits a consistent frozen view.
type EditingContext struct {
	store   TimestampedStore
	at      Timestamp
	overlay map[Path]Sample
}

var _ Store = (*EditingContext)(nil)

// NewEditingContext creates a live context over a store
func NewEditingContext(store TimestampedStore) *EditingContext {
	return &EditingContext{
		store:   store,
		overlay: make(map[Path]Sample),
	}
}

// NewSnapshotContext creates a context frozen at the current instant
func NewSnapshotContext(store TimestampedStore) *EditingContext {
	return &EditingContext{
		store:   store,
		at:      Now(),
		overlay: make(map[Path]Sample),
	}
}

// Sample resolves a read against the overlay and the underlying state
// at T0. When both hold a sample the one with the larger date wins; an
// exact tie resolves to the underlying store.
func (c *EditingContext) Sample(path Path) (*Sample, error) {
	under, err := c.store.SampleAt(path, c.at)
	if err != nil {
		return nil, err
	}
	ov, ok := c.overlay[path]
	if !ok {
		return under, nil
	}
	if under != nil && under.Date >= ov.Date {
		return under, nil
	}
	out := ov
	return &out, nil
}

// SetSample buffers a write in the overlay, stamped with the current
// time unless dated. The last set per path wins locally; the overlay
// keeps no history.
func (c *EditingContext) SetSample(path Path, s Sample) error {
	c.overlay[path] = stampNow(s)
	return nil
}

// EnumerateStatus merges the underlying enumeration at T0 with the
// overlay: an overlaid status shadows the underlying one when strictly
// newer, and instances created only inside the context follow in
// ascending order.
func (c *EditingContext) EnumerateStatus(model ModelKey, visit func(InstanceKey, Sample) bool) error {
	seen := make(map[InstanceKey]bool)
	stopped := false
	err := c.store.EnumerateStatusAt(model, c.at, func(instance InstanceKey, under Sample) bool {
		seen[instance] = true
		s := under
		if ov, ok := c.overlay[StatusPath(model, instance)]; ok && ov.Date > under.Date {
			s = ov
		}
		if !visit(instance, s) {
			stopped = true
			return false
		}
		return true
	})
	if err != nil || stopped {
		return err
	}

	var created []InstanceKey
	for path := range c.overlay {
		if path.Model == model && path.IsStatus() && !seen[path.Instance] {
			created = append(created, path.Instance)
		}
	}
	sort.Slice(created, func(i, j int) bool { return created[i] < created[j] })
	for _, instance := range created {
		if !visit(instance, c.overlay[StatusPath(model, instance)]) {
			return nil
		}
	}
	return nil
}

// Commit writes every buffered sample to the underlying store with its
// overlay date, then clears the overlay. A snapshot context advances
// T0 to the current time so subsequent reads see the committed state.
// On a write error the overlay is left intact; samples already written
// stand.
func (c *EditingContext) Commit() error {
	paths := make([]Path, 0, len(c.overlay))
	for path := range c.overlay {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Less(paths[j]) })

	for _, path := range paths {
		if err := c.store.SetSample(path, c.overlay[path]); err != nil {
			return err
		}
	}
	c.overlay = make(map[Path]Sample)
	if !c.at.IsZero() {
		c.at = Now()
	}
	return nil
}

// Discard drops every buffered write. T0 is unchanged.
func (c *EditingContext) Discard() {
	c.overlay = make(map[Path]Sample)
}

// Pending returns the number of buffered writes
func (c *EditingContext) Pending() int {
	return len(c.overlay)
}

// At returns the reference instant; zero for a live context
func (c *EditingContext) At() Timestamp {
	return c.at
}

// Codec returns the underlying store's codec
func (c *EditingContext) Codec() codec.Codec {
	return c.store.Codec()
}
