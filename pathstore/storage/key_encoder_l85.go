package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// L85KeyEncoder implements KeyEncoder using L85 encoding for
// human-readable keys. L85 preserves byte order, so these keys sort
// exactly like their binary counterparts while staying printable in
// badger tooling and the CLI's key display.
type L85KeyEncoder struct{}

const l85GroupSize = 10 // 8 bytes encode to 10 characters

// EncodeKey creates an L85-encoded key from the keyspace's components
func (e *L85KeyEncoder) EncodeKey(space Keyspace, components ...uint64) []byte {
	if len(components) != space.Width() {
		panic(fmt.Sprintf("keyspace %c takes %d components, got %d", space, space.Width(), len(components)))
	}
	return e.EncodePrefix(space, components...)
}

// DecodeKey extracts components from an L85-encoded key
func (e *L85KeyEncoder) DecodeKey(space Keyspace, key []byte) ([]uint64, error) {
	if len(key) < 1 || Keyspace(key[0]) != space {
		return nil, fmt.Errorf("key not in keyspace %c", space)
	}
	body := key[1:]
	if len(body) != space.Width()*l85GroupSize {
		return nil, fmt.Errorf("keyspace %c key has %d bytes, want %d", space, len(body), space.Width()*l85GroupSize)
	}

	components := make([]uint64, space.Width())
	for i := range components {
		group, err := codec.DecodeFixed8(string(body[i*l85GroupSize : (i+1)*l85GroupSize]))
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		components[i] = binary.BigEndian.Uint64(group[:])
	}
	return components, nil
}

// EncodePrefix creates an L85-encoded prefix key from leading components
func (e *L85KeyEncoder) EncodePrefix(space Keyspace, components ...uint64) []byte {
	key := make([]byte, 0, 1+len(components)*l85GroupSize)
	key = append(key, byte(space))
	for _, c := range components {
		var group [8]byte
		binary.BigEndian.PutUint64(group[:], c)
		key = append(key, codec.EncodeFixed8(group)...)
	}
	return key
}

// EncodePrefixRange creates start and end keys for a prefix scan
func (e *L85KeyEncoder) EncodePrefixRange(space Keyspace, components ...uint64) (start, end []byte) {
	start = e.EncodePrefix(space, components...)
	return start, prefixEnd(start)
}
