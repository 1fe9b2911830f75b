package pathstore

import (
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// Store is the minimal path-addressed contract. Sample returns the
// latest sample at a path, or nil with a nil error when nothing is
// stored there. SetSample stamps a zero-dated sample with the current
// time. EnumerateStatus visits the status sample of every instance of
// a model in ascending instance order until the callback returns false;
// paginated diffing resumes from an instance key and needs the order
// stable across calls.
//
// Stores assume single-threaded access; wrap one externally when
// sharing across goroutines.
type Store interface {
	Sample(path Path) (*Sample, error)
	SetSample(path Path, s Sample) error
	EnumerateStatus(model ModelKey, visit func(InstanceKey, Sample) bool) error
	Codec() codec.Codec
}

// TimestampedStore adds a time axis: reads and enumeration as of an
// instant. A zero timestamp means latest. SampleAt returns the sample
// with the greatest date at or before the instant, nil when the path
// had no value yet.
type TimestampedStore interface {
	Store
	SampleAt(path Path, at Timestamp) (*Sample, error)
	EnumerateStatusAt(model ModelKey, at Timestamp, visit func(InstanceKey, Sample) bool) error
}

// PropertySource exposes the latest sample of every ordinary property
// of an instance. The status property is not visited; status flows
// through EnumerateStatus. The diff producer requires this.
type PropertySource interface {
	EnumerateProperties(model ModelKey, instance InstanceKey, visit func(PropertyKey, Sample) bool) error
}

// RecordSource exposes the raw history log for transfer and merge
type RecordSource interface {
	RecordsAfter(after Timestamp) ([]Record, error)
}

// stampNow fills in a zero write date
func stampNow(s Sample) Sample {
	if s.Date.IsZero() {
		s.Date = Now()
	}
	return s
}

// Get reads the latest value at a path. Absence, a decode failure and
// a type mismatch all yield (zero, false); reads never fail.
func Get[V any](s Store, path Path) (V, bool) {
	var zero V
	sample, err := s.Sample(path)
	if err != nil || sample == nil {
		return zero, false
	}
	return decodeValue[V](s.Codec(), sample.Data)
}

// Set writes a value at a path stamped with the current time
func Set[V any](s Store, path Path, v V) error {
	return SetAt(s, path, v, 0)
}

// SetAt writes a value at a path with an explicit date. A zero date
// means now. Stores guarantee an older write never shadows a newer one.
func SetAt[V any](s Store, path Path, v V, at Timestamp) error {
	data, err := encodeValue(s.Codec(), v)
	if err != nil {
		return err
	}
	return s.SetSample(path, Sample{Data: data, Date: at})
}

// GetAt reads the value at a path as of an instant, with its write
// date. A zero instant means latest. Follows the same silent-absence
// contract as Get.
func GetAt[V any](s TimestampedStore, path Path, at Timestamp) (Timestamped[V], bool) {
	sample, err := s.SampleAt(path, at)
	if err != nil || sample == nil {
		return Timestamped[V]{}, false
	}
	v, ok := decodeValue[V](s.Codec(), sample.Data)
	if !ok {
		return Timestamped[V]{}, false
	}
	return Timestamped[V]{Value: v, Date: sample.Date}, true
}

// Enumerate visits every instance of a model with its decoded status
// and collects the non-skipped results. Instances whose status fails
// to decode are passed over.
func Enumerate[T any](s Store, model ModelKey, f func(InstanceKey, InstanceStatus) (T, bool)) []T {
	var out []T
	_ = s.EnumerateStatus(model, func(instance InstanceKey, sample Sample) bool {
		status, ok := decodeValue[InstanceStatus](s.Codec(), sample.Data)
		if !ok {
			return true
		}
		if t, keep := f(instance, status); keep {
			out = append(out, t)
		}
		return true
	})
	return out
}

// EnumerateAt is Enumerate as of an instant, forwarding each status
// sample's write date to the callback
func EnumerateAt[T any](s TimestampedStore, model ModelKey, at Timestamp, f func(InstanceKey, InstanceStatus, Timestamp) (T, bool)) []T {
	var out []T
	_ = s.EnumerateStatusAt(model, at, func(instance InstanceKey, sample Sample) bool {
		status, ok := decodeValue[InstanceStatus](s.Codec(), sample.Data)
		if !ok {
			return true
		}
		if t, keep := f(instance, status, sample.Date); keep {
			out = append(out, t)
		}
		return true
	})
	return out
}

// CreateInstance marks an instance as existing
func CreateInstance(s Store, model ModelKey, instance InstanceKey) error {
	return CreateInstanceAt(s, model, instance, 0)
}

// CreateInstanceAt marks an instance as existing at an explicit date
func CreateInstanceAt(s Store, model ModelKey, instance InstanceKey, at Timestamp) error {
	return SetAt(s, StatusPath(model, instance), StatusCreated, at)
}

// DeleteInstance marks an instance deleted. Its property values stay
// in place; only enumeration treats it as gone.
func DeleteInstance(s Store, model ModelKey, instance InstanceKey) error {
	return SetAt(s, StatusPath(model, instance), StatusDeleted, 0)
}

// DeleteInstanceAt marks an instance deleted at an explicit date
func DeleteInstanceAt(s Store, model ModelKey, instance InstanceKey, at Timestamp) error {
	return SetAt(s, StatusPath(model, instance), StatusDeleted, at)
}

// Status reads an instance's current status
func Status(s Store, model ModelKey, instance InstanceKey) (InstanceStatus, bool) {
	return Get[InstanceStatus](s, StatusPath(model, instance))
}

// StatusAt reads an instance's status as of an instant
func StatusAt(s TimestampedStore, model ModelKey, instance InstanceKey, at Timestamp) (Timestamped[InstanceStatus], bool) {
	return GetAt[InstanceStatus](s, StatusPath(model, instance), at)
}

// encodeValue encodes a value with the store's codec. InstanceStatus
// travels as int64 so every scalar codec can carry it.
func encodeValue(c codec.Codec, v interface{}) ([]byte, error) {
	if status, ok := v.(InstanceStatus); ok {
		return c.Encode(int64(status))
	}
	return c.Encode(v)
}

// decodeValue decodes sample bytes into V, reporting false instead of
// an error on any failure
func decodeValue[V any](c codec.Codec, data []byte) (V, bool) {
	var v V
	if status, ok := any(&v).(*InstanceStatus); ok {
		var n int64
		if err := c.Decode(data, &n); err != nil {
			return v, false
		}
		*status = InstanceStatus(n)
		return v, true
	}
	if err := c.Decode(data, &v); err != nil {
		return v, false
	}
	return v, true
}

// EncodeStatus encodes a status the way the typed helpers do, for
// callers assembling samples by hand
func EncodeStatus(c codec.Codec, status InstanceStatus) ([]byte, error) {
	return encodeValue(c, status)
}

// DecodeStatus decodes a status sample's bytes
func DecodeStatus(c codec.Codec, data []byte) (InstanceStatus, bool) {
	return decodeValue[InstanceStatus](c, data)
}
