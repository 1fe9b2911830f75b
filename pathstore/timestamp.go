package pathstore

import (
	"time"
)

// Timestamp is seconds since the Unix epoch as a float64. This is also
// the wire representation, so a timestamp survives a sync round trip
// bit-exact, which last-writer-wins merging depends on. The zero value
// means "unset": latest for reads, now for writes, the beginning of
// history for sync cursors.
type Timestamp float64

// Now returns the current time as a Timestamp
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to a Timestamp
func FromTime(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixNano()) / float64(time.Second))
}

// Time converts the timestamp back to a time.Time. Sub-microsecond
// precision is lost; use Timestamp values directly when comparing.
func (ts Timestamp) Time() time.Time {
	return time.Unix(0, int64(float64(ts)*float64(time.Second)))
}

// IsZero reports whether the timestamp is unset
func (ts Timestamp) IsZero() bool {
	return ts == 0
}

// Add returns the timestamp shifted by a duration
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return ts + Timestamp(d.Seconds())
}

// String formats the timestamp for display
func (ts Timestamp) String() string {
	if ts.IsZero() {
		return "unset"
	}
	return ts.Time().UTC().Format(time.RFC3339Nano)
}
