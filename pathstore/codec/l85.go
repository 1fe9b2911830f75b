package codec

import (
	"errors"
	"fmt"
)

// L85 is a lexicographically-sortable Base85 variant: encoded strings
// compare byte-for-byte in the same order as the source bytes. The
// storage layer uses it for its human-readable key encoding strategy,
// where index keys stay printable without losing their sort order.

// L85Alphabet lists the 85 digits in ascending byte order, which is what
// makes the encoding order-preserving.
const L85Alphabet = "!$%&()+,-./" +
	"0123456789:;<=>@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ[]_`" +
	"abcdefghijklmnopqrstuvwxyz{}"

var (
	// l85Decode maps an input byte to its alphabet index + 1; zero marks
	// an invalid character.
	l85Decode [256]byte

	// ErrInvalidCharacter indicates an invalid character in input
	ErrInvalidCharacter = errors.New("invalid L85 character")
)

func init() {
	for i, c := range L85Alphabet {
		l85Decode[byte(c)] = byte(i + 1)
	}
}

// EncodeL85 encodes bytes to L85 text. Every 4-byte group becomes 5
// digits; a trailing group of n bytes becomes n+1 digits.
func EncodeL85(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	result := make([]byte, 0, len(src)*5/4+5)

	for i := 0; i+4 <= len(src); i += 4 {
		v := uint32(src[i])<<24 | uint32(src[i+1])<<16 |
			uint32(src[i+2])<<8 | uint32(src[i+3])

		chars := [5]byte{}
		for j := 4; j >= 0; j-- {
			chars[j] = L85Alphabet[v%85]
			v /= 85
		}
		result = append(result, chars[:]...)
	}

	remainder := len(src) % 4
	if remainder > 0 {
		// Zero-pad the tail group, then keep only remainder+1 digits
		padded := [4]byte{}
		copy(padded[:], src[len(src)-remainder:])

		v := uint32(padded[0])<<24 | uint32(padded[1])<<16 |
			uint32(padded[2])<<8 | uint32(padded[3])

		chars := [5]byte{}
		for j := 4; j >= 0; j-- {
			chars[j] = L85Alphabet[v%85]
			v /= 85
		}
		result = append(result, chars[:remainder+1]...)
	}

	return string(result)
}

// DecodeL85 decodes L85 text back to bytes
func DecodeL85(src string) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}

	for i, c := range src {
		if c >= 256 || l85Decode[byte(c)] == 0 {
			return nil, fmt.Errorf("%w at position %d: %c", ErrInvalidCharacter, i, c)
		}
	}

	result := make([]byte, 0, len(src)*4/5+4)

	for i := 0; i+5 <= len(src); i += 5 {
		// The decode table stores index+1, so subtract 1 per digit
		v := uint32(0)
		for j := 0; j < 5; j++ {
			v = v*85 + uint32(l85Decode[src[i+j]]-1)
		}

		group := [4]byte{
			byte(v >> 24),
			byte(v >> 16),
			byte(v >> 8),
			byte(v),
		}
		result = append(result, group[:]...)
	}

	remainder := len(src) % 5
	if remainder > 0 {
		// n+1 digits encode n bytes, so a single leftover digit is malformed
		numBytes := remainder - 1
		if numBytes <= 0 {
			return nil, errors.New("invalid L85 encoding: incomplete group")
		}

		// The encoder floored away the low digits of a zero-padded
		// group; padding with the top digit rounds back up so the kept
		// bytes come out exact
		padded := src[len(src)-remainder:]
		for len(padded) < 5 {
			padded += string(L85Alphabet[84])
		}

		v := uint32(0)
		for j := 0; j < 5; j++ {
			v = v*85 + uint32(l85Decode[padded[j]]-1)
		}

		group := [4]byte{
			byte(v >> 24),
			byte(v >> 16),
			byte(v >> 8),
			byte(v),
		}
		result = append(result, group[:numBytes]...)
	}

	return result, nil
}

// EncodeFixed8 encodes an 8-byte array to exactly 10 characters. Key
// components (model, instance, property, timestamp) are all 8 bytes, so
// this is the unit the readable key encoder works in.
func EncodeFixed8(src [8]byte) string {
	return EncodeL85(src[:])
}

// DecodeFixed8 decodes exactly 10 characters to an 8-byte array
func DecodeFixed8(src string) ([8]byte, error) {
	var result [8]byte

	if len(src) != 10 {
		return result, fmt.Errorf("expected 10 characters, got %d", len(src))
	}

	decoded, err := DecodeL85(src)
	if err != nil {
		return result, err
	}

	if len(decoded) != 8 {
		return result, fmt.Errorf("decoded to %d bytes, expected 8", len(decoded))
	}

	copy(result[:], decoded)
	return result, nil
}
