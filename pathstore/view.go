package pathstore

import (
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// View is a read-only projection of a timestamped store fixed at one
// instant. It satisfies Store, so accessor code written against a live
// store runs unchanged against a frozen point in time. Writes are
// silently discarded rather than rejected; a view is a lens, not a
// branch.
type View struct {
	store TimestampedStore
	at    Timestamp
}

var _ Store = (*View)(nil)

// NewView projects a store at the given instant. A zero instant tracks
// the latest state.
func NewView(store TimestampedStore, at Timestamp) *View {
	return &View{store: store, at: at}
}

// Sample reads the sample in force at the view's instant
func (v *View) Sample(path Path) (*Sample, error) {
	return v.store.SampleAt(path, v.at)
}

// SetSample discards the write
func (v *View) SetSample(Path, Sample) error {
	return nil
}

// EnumerateStatus enumerates instances as of the view's instant
func (v *View) EnumerateStatus(model ModelKey, visit func(InstanceKey, Sample) bool) error {
	return v.store.EnumerateStatusAt(model, v.at, visit)
}

// Codec returns the underlying store's codec
func (v *View) Codec() codec.Codec {
	return v.store.Codec()
}

// At returns the instant the view is fixed at
func (v *View) At() Timestamp {
	return v.at
}

// MoveView rebinds the view to a different instant
func (v *View) MoveView(to Timestamp) {
	v.at = to
}
