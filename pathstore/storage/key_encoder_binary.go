package storage

import (
	"encoding/binary"
	"fmt"
)

// BinaryKeyEncoder implements KeyEncoder using raw big-endian binary
// for space efficiency
type BinaryKeyEncoder struct{}

const binaryGroupSize = 8

// EncodeKey creates a binary key from the keyspace's components
func (e *BinaryKeyEncoder) EncodeKey(space Keyspace, components ...uint64) []byte {
	if len(components) != space.Width() {
		panic(fmt.Sprintf("keyspace %c takes %d components, got %d", space, space.Width(), len(components)))
	}
	return e.EncodePrefix(space, components...)
}

// DecodeKey extracts components from a binary key
func (e *BinaryKeyEncoder) DecodeKey(space Keyspace, key []byte) ([]uint64, error) {
	if len(key) < 1 || Keyspace(key[0]) != space {
		return nil, fmt.Errorf("key not in keyspace %c", space)
	}
	body := key[1:]
	if len(body) != space.Width()*binaryGroupSize {
		return nil, fmt.Errorf("keyspace %c key has %d bytes, want %d", space, len(body), space.Width()*binaryGroupSize)
	}

	components := make([]uint64, space.Width())
	for i := range components {
		components[i] = binary.BigEndian.Uint64(body[i*binaryGroupSize:])
	}
	return components, nil
}

// EncodePrefix creates a binary prefix key from leading components
func (e *BinaryKeyEncoder) EncodePrefix(space Keyspace, components ...uint64) []byte {
	key := make([]byte, 1+len(components)*binaryGroupSize)
	key[0] = byte(space)
	for i, c := range components {
		binary.BigEndian.PutUint64(key[1+i*binaryGroupSize:], c)
	}
	return key
}

// EncodePrefixRange creates start and end keys for a prefix scan
func (e *BinaryKeyEncoder) EncodePrefixRange(space Keyspace, components ...uint64) (start, end []byte) {
	start = e.EncodePrefix(space, components...)
	return start, prefixEnd(start)
}
