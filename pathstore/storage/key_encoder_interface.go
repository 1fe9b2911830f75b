package storage

import (
	"math"

	"github.com/wbrown/janus-pathstore/pathstore"
)

// Keyspace separates the store's key families inside one badger
// database. Every key starts with its keyspace byte.
type Keyspace byte

const (
	// SpacePrimary holds every sample:
	// P | model | instance | property | date | seq -> data
	SpacePrimary Keyspace = 'P'

	// SpaceStatus duplicates status samples for instance enumeration:
	// S | model | instance | date | seq -> data
	SpaceStatus Keyspace = 'S'

	// SpaceLog orders every sample by time for record scans:
	// T | date | seq | model | instance | property -> data
	SpaceLog Keyspace = 'T'
)

// Width returns the number of fixed components in this keyspace's keys
func (k Keyspace) Width() int {
	switch k {
	case SpaceStatus:
		return 4
	default:
		return 5
	}
}

// KeyEncoder builds and parses store keys from ordered uint64
// components. Components arrive already order-transformed, so any
// encoding that preserves byte order preserves key order.
type KeyEncoder interface {
	// EncodeKey creates a full key from the keyspace's components
	EncodeKey(space Keyspace, components ...uint64) []byte

	// DecodeKey extracts the components of a full key
	DecodeKey(space Keyspace, key []byte) ([]uint64, error)

	// EncodePrefix creates a prefix key from leading components
	EncodePrefix(space Keyspace, components ...uint64) []byte

	// EncodePrefixRange creates start and end keys for a prefix scan
	EncodePrefixRange(space Keyspace, components ...uint64) (start, end []byte)
}

// KeyEncodingStrategy represents different encoding strategies
type KeyEncodingStrategy int

const (
	// L85Strategy uses L85 encoding for human-readable keys
	L85Strategy KeyEncodingStrategy = iota

	// BinaryStrategy uses raw binary for space efficiency
	BinaryStrategy
)

// NewKeyEncoder creates a key encoder with the specified strategy
func NewKeyEncoder(strategy KeyEncodingStrategy) KeyEncoder {
	switch strategy {
	case L85Strategy:
		return &L85KeyEncoder{}
	default:
		return &BinaryKeyEncoder{}
	}
}

// PathPrefix returns the primary-keyspace prefix covering every dated
// sample at a path. Inspection tooling renders it; the stores build
// their keys internally.
func PathPrefix(e KeyEncoder, p pathstore.Path) []byte {
	return e.EncodePrefix(SpacePrimary,
		orderKey(int64(p.Model)), orderKey(int64(p.Instance)), orderKey(int64(p.Property)))
}

// StatusPrefix returns the status-keyspace prefix covering an
// instance's status history
func StatusPrefix(e KeyEncoder, model pathstore.ModelKey, instance pathstore.InstanceKey) []byte {
	return e.EncodePrefix(SpaceStatus, orderKey(int64(model)), orderKey(int64(instance)))
}

// SampleKey returns the full primary key a sample at the given date and
// sequence number would occupy
func SampleKey(e KeyEncoder, p pathstore.Path, date pathstore.Timestamp, seq uint64) []byte {
	return e.EncodeKey(SpacePrimary,
		orderKey(int64(p.Model)), orderKey(int64(p.Instance)), orderKey(int64(p.Property)),
		orderDate(date), seq)
}

// orderKey maps an int64 key onto uint64 so that unsigned byte order
// matches signed numeric order
func orderKey(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

func unorderKey(u uint64) int64 {
	return int64(u ^ (1 << 63))
}

// orderDate maps a timestamp onto uint64 so that unsigned byte order
// matches numeric order: non-negative floats get the sign bit set,
// negative floats are bit-flipped
func orderDate(t pathstore.Timestamp) uint64 {
	bits := math.Float64bits(float64(t))
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func unorderDate(u uint64) pathstore.Timestamp {
	if u&(1<<63) != 0 {
		return pathstore.Timestamp(math.Float64frombits(u &^ (1 << 63)))
	}
	return pathstore.Timestamp(math.Float64frombits(^u))
}
