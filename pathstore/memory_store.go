package pathstore

import (
	"sort"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// MemoryStore is the plain in-memory store: one current sample per
// path, overwritten in place. Because it keeps no history, it enforces
// last-writer-wins at write time: a sample dated older than the stored
// one is dropped, an equal date replaces (insertion order wins).
type MemoryStore struct {
	codec   codec.Codec
	samples map[Path]Sample
}

var _ Store = (*MemoryStore)(nil)
var _ PropertySource = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store using the given value codec
func NewMemoryStore(c codec.Codec) *MemoryStore {
	return &MemoryStore{
		codec:   c,
		samples: make(map[Path]Sample),
	}
}

// Sample returns the current sample at a path, nil when absent
func (m *MemoryStore) Sample(path Path) (*Sample, error) {
	s, ok := m.samples[path]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// SetSample stores a sample at a path. A zero date is stamped with the
// current time. An incoming sample older than the stored one does not
// replace it.
func (m *MemoryStore) SetSample(path Path, s Sample) error {
	s = stampNow(s)
	if existing, ok := m.samples[path]; ok && existing.Date > s.Date {
		return nil
	}
	m.samples[path] = s
	return nil
}

// EnumerateStatus visits each instance's status sample in ascending
// instance order
func (m *MemoryStore) EnumerateStatus(model ModelKey, visit func(InstanceKey, Sample) bool) error {
	var instances []InstanceKey
	for path := range m.samples {
		if path.Model == model && path.IsStatus() {
			instances = append(instances, path.Instance)
		}
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i] < instances[j] })

	for _, instance := range instances {
		if !visit(instance, m.samples[StatusPath(model, instance)]) {
			return nil
		}
	}
	return nil
}

// EnumerateProperties visits the sample of every ordinary property of
// an instance in ascending property order
func (m *MemoryStore) EnumerateProperties(model ModelKey, instance InstanceKey, visit func(PropertyKey, Sample) bool) error {
	var properties []PropertyKey
	for path := range m.samples {
		if path.Model == model && path.Instance == instance && !path.IsStatus() {
			properties = append(properties, path.Property)
		}
	}
	sort.Slice(properties, func(i, j int) bool { return properties[i] < properties[j] })

	for _, property := range properties {
		if !visit(property, m.samples[NewPath(model, instance, property)]) {
			return nil
		}
	}
	return nil
}

// Codec returns the store's value codec
func (m *MemoryStore) Codec() codec.Codec {
	return m.codec
}

// Len returns the number of stored paths
func (m *MemoryStore) Len() int {
	return len(m.samples)
}
