package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Kind identifies the type of a binary-encoded value
type Kind byte

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
)

// Binary is a compact scalar codec: one kind byte followed by a
// big-endian payload. It covers the value types a schema-less store
// traffics in (string, int64, float64, bool, time.Time, []byte) and
// rejects everything else. Decoding into the wrong target type is an
// error; the typed store accessors translate that into "no value".
type Binary struct{}

var _ Codec = Binary{}

// Encode serializes a scalar value with a leading kind byte
func (Binary) Encode(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return append([]byte{byte(KindString)}, val...), nil
	case int:
		return appendInt(KindInt, int64(val)), nil
	case int64:
		return appendInt(KindInt, val), nil
	case float64:
		return appendInt(KindFloat, int64(math.Float64bits(val))), nil
	case bool:
		if val {
			return []byte{byte(KindBool), 1}, nil
		}
		return []byte{byte(KindBool), 0}, nil
	case time.Time:
		return appendInt(KindTime, val.UnixNano()), nil
	case []byte:
		return append([]byte{byte(KindBytes)}, val...), nil
	default:
		return nil, fmt.Errorf("binary codec cannot encode %T", v)
	}
}

// Decode deserializes data into out. Out must be a pointer to the
// encoded value's type, or *interface{} to accept whatever is there.
func (Binary) Decode(data []byte, out interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("binary codec: empty input")
	}
	kind := Kind(data[0])
	payload := data[1:]

	// Untyped target: decode to the natural Go type
	if any, ok := out.(*interface{}); ok {
		v, err := decodeAny(kind, payload)
		if err != nil {
			return err
		}
		*any = v
		return nil
	}

	switch target := out.(type) {
	case *string:
		if kind != KindString {
			return kindMismatch(KindString, kind)
		}
		*target = string(payload)
	case *int64:
		if kind != KindInt {
			return kindMismatch(KindInt, kind)
		}
		n, err := readInt(payload)
		if err != nil {
			return err
		}
		*target = n
	case *float64:
		if kind != KindFloat {
			return kindMismatch(KindFloat, kind)
		}
		n, err := readInt(payload)
		if err != nil {
			return err
		}
		*target = math.Float64frombits(uint64(n))
	case *bool:
		if kind != KindBool {
			return kindMismatch(KindBool, kind)
		}
		if len(payload) != 1 {
			return fmt.Errorf("bool payload must be 1 byte, got %d", len(payload))
		}
		*target = payload[0] != 0
	case *time.Time:
		if kind != KindTime {
			return kindMismatch(KindTime, kind)
		}
		n, err := readInt(payload)
		if err != nil {
			return err
		}
		*target = time.Unix(0, n)
	case *[]byte:
		if kind != KindBytes {
			return kindMismatch(KindBytes, kind)
		}
		buf := make([]byte, len(payload))
		copy(buf, payload)
		*target = buf
	default:
		return fmt.Errorf("binary codec cannot decode into %T", out)
	}
	return nil
}

// decodeAny decodes a payload to its natural Go type
func decodeAny(kind Kind, payload []byte) (interface{}, error) {
	switch kind {
	case KindString:
		return string(payload), nil
	case KindInt:
		return readInt(payload)
	case KindFloat:
		n, err := readInt(payload)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(uint64(n)), nil
	case KindBool:
		if len(payload) != 1 {
			return nil, fmt.Errorf("bool payload must be 1 byte, got %d", len(payload))
		}
		return payload[0] != 0, nil
	case KindTime:
		n, err := readInt(payload)
		if err != nil {
			return nil, err
		}
		return time.Unix(0, n), nil
	case KindBytes:
		buf := make([]byte, len(payload))
		copy(buf, payload)
		return buf, nil
	default:
		return nil, fmt.Errorf("unknown value kind: %d", kind)
	}
}

func appendInt(kind Kind, n int64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(kind)
	binary.BigEndian.PutUint64(buf[1:], uint64(n))
	return buf
}

func readInt(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("numeric payload must be 8 bytes, got %d", len(payload))
	}
	return int64(binary.BigEndian.Uint64(payload)), nil
}

func kindMismatch(want, got Kind) error {
	return fmt.Errorf("value kind mismatch: want %d, got %d", want, got)
}
