package pathstore

import (
	"sort"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// HistoryStore is the in-memory reference implementation of a
// timestamped store. Every write appends to a per-path log in
// insertion order; nothing is ever removed. Deleting an instance is a
// normal status write, so history stays replayable. Reads resolve
// last-writer-wins by date, insertion order breaking ties.
type HistoryStore struct {
	codec   codec.Codec
	samples map[Path][]Sample
}

var _ TimestampedStore = (*HistoryStore)(nil)
var _ PropertySource = (*HistoryStore)(nil)
var _ RecordSource = (*HistoryStore)(nil)

// NewHistoryStore creates an empty history store using the given value
// codec
func NewHistoryStore(c codec.Codec) *HistoryStore {
	return &HistoryStore{
		codec:   c,
		samples: make(map[Path][]Sample),
	}
}

// pick returns the sample with the greatest date at or before `at` (any
// date when `at` is zero). Equal dates resolve to the later insertion.
func pick(samples []Sample, at Timestamp) *Sample {
	var best *Sample
	for i := range samples {
		s := &samples[i]
		if !at.IsZero() && s.Date > at {
			continue
		}
		if best == nil || s.Date >= best.Date {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Sample returns the latest sample at a path
func (h *HistoryStore) Sample(path Path) (*Sample, error) {
	return pick(h.samples[path], 0), nil
}

// SampleAt returns the sample in force at an instant, nil when the
// path had no value yet
func (h *HistoryStore) SampleAt(path Path, at Timestamp) (*Sample, error) {
	return pick(h.samples[path], at), nil
}

// SetSample appends a sample to the path's history. A zero date is
// stamped with the current time.
func (h *HistoryStore) SetSample(path Path, s Sample) error {
	h.samples[path] = append(h.samples[path], stampNow(s))
	return nil
}

// EnumerateStatus visits each instance's latest status sample in
// ascending instance order
func (h *HistoryStore) EnumerateStatus(model ModelKey, visit func(InstanceKey, Sample) bool) error {
	return h.EnumerateStatusAt(model, 0, visit)
}

// EnumerateStatusAt visits each instance's status sample as of an
// instant. Instances with no status recorded by then are skipped.
func (h *HistoryStore) EnumerateStatusAt(model ModelKey, at Timestamp, visit func(InstanceKey, Sample) bool) error {
	for _, instance := range h.statusInstances(model) {
		s := pick(h.samples[StatusPath(model, instance)], at)
		if s == nil {
			continue
		}
		if !visit(instance, *s) {
			return nil
		}
	}
	return nil
}

// EnumerateProperties visits the latest sample of every ordinary
// property of an instance in ascending property order
func (h *HistoryStore) EnumerateProperties(model ModelKey, instance InstanceKey, visit func(PropertyKey, Sample) bool) error {
	var properties []PropertyKey
	for path := range h.samples {
		if path.Model == model && path.Instance == instance && !path.IsStatus() {
			properties = append(properties, path.Property)
		}
	}
	sort.Slice(properties, func(i, j int) bool { return properties[i] < properties[j] })

	for _, property := range properties {
		s := pick(h.samples[NewPath(model, instance, property)], 0)
		if s == nil {
			continue
		}
		if !visit(property, *s) {
			return nil
		}
	}
	return nil
}

// RecordsAfter returns every log entry dated strictly after `after`
// (all of them when `after` is zero), in merge order
func (h *HistoryStore) RecordsAfter(after Timestamp) ([]Record, error) {
	var out []Record
	for path, samples := range h.samples {
		for _, s := range samples {
			if !after.IsZero() && s.Date <= after {
				continue
			}
			out = append(out, Record{Path: path, Sample: s})
		}
	}
	SortRecords(out)
	return out, nil
}

// ApplyRecords merges a record set into the history. Entries identical
// to one already present are skipped, so replaying an exchanged log is
// idempotent.
func (h *HistoryStore) ApplyRecords(records []Record) error {
	for _, r := range records {
		if h.contains(r) {
			continue
		}
		h.samples[r.Path] = append(h.samples[r.Path], r.Sample)
	}
	return nil
}

func (h *HistoryStore) contains(r Record) bool {
	for _, s := range h.samples[r.Path] {
		if s.Equal(r.Sample) {
			return true
		}
	}
	return false
}

// Codec returns the store's value codec
func (h *HistoryStore) Codec() codec.Codec {
	return h.codec
}

// Len returns the number of distinct paths with history
func (h *HistoryStore) Len() int {
	return len(h.samples)
}

func (h *HistoryStore) statusInstances(model ModelKey) []InstanceKey {
	var instances []InstanceKey
	for path := range h.samples {
		if path.Model == model && path.IsStatus() {
			instances = append(instances, path.Instance)
		}
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i] < instances[j] })
	return instances
}
