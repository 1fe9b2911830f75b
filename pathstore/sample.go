package pathstore

import (
	"bytes"
	"sort"
)

// Timestamped pairs a decoded value with the time it was written
type Timestamped[V any] struct {
	Value V
	Date  Timestamp
}

// Sample is the encoded form of a timestamped value: codec output plus
// the write time. Stores, logs and the sync protocol all traffic in
// samples so history can move between stores without knowing the
// concrete value type.
type Sample struct {
	Data []byte    `json:"data"`
	Date Timestamp `json:"date"`
}

// Equal reports whether two samples carry the same bytes at the same
// date
func (s Sample) Equal(other Sample) bool {
	return s.Date == other.Date && bytes.Equal(s.Data, other.Data)
}

// Record is one durable log entry: a sample at a path
type Record struct {
	Path   Path   `json:"path"`
	Sample Sample `json:"sample"`
}

// Compare orders records by date, then data bytes, then path. Ordering
// ahead of path gives two replicas a shared total order for replaying
// or merging histories.
func (r Record) Compare(other Record) int {
	if r.Sample.Date != other.Sample.Date {
		if r.Sample.Date < other.Sample.Date {
			return -1
		}
		return 1
	}
	if c := bytes.Compare(r.Sample.Data, other.Sample.Data); c != 0 {
		return c
	}
	return r.Path.Compare(other.Path)
}

// Equal reports whether two records are identical entries
func (r Record) Equal(other Record) bool {
	return r.Path == other.Path && r.Sample.Equal(other.Sample)
}

// SortRecords sorts records in place into merge order
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Compare(records[j]) < 0
	})
}

// MergeRecords returns the sorted union of two record sets with exact
// duplicates removed
func MergeRecords(a, b []Record) []Record {
	merged := make([]Record, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	SortRecords(merged)

	out := merged[:0]
	for _, r := range merged {
		if len(out) > 0 && r.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, r)
	}
	return out
}
