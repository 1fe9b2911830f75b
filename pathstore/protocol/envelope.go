package protocol

import (
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// Encode frames a message as an envelope: the discriminator byte
// followed by the codec's encoding of the payload
func Encode(c codec.Codec, m Message) ([]byte, error) {
	payload, err := c.Encode(m)
	if err != nil {
		return nil, Errorf(ErrEncodeFailed, "%s: %v", m.kind(), err)
	}
	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(m.kind()))
	return append(out, payload...), nil
}

// PeekKind reads the discriminator without consuming the payload, so a
// receiver can dispatch to the right decoder. Unknown discriminators
// and empty envelopes report KindInvalid.
func PeekKind(data []byte) MessageKind {
	if len(data) == 0 {
		return KindInvalid
	}
	k := MessageKind(data[0])
	if k > KindError {
		return KindInvalid
	}
	return k
}

// Decode decodes an envelope as the expected message type. A
// mismatched discriminator is an invalidEnvelope error; a payload the
// codec rejects is a decodeFailed error.
func Decode[M Message](c codec.Codec, data []byte) (M, error) {
	var m M
	if len(data) == 0 {
		return m, Errorf(ErrInvalidEnvelope, "empty envelope")
	}
	if got := PeekKind(data); got != m.kind() {
		return m, Errorf(ErrInvalidEnvelope, "expected %s, got %s", m.kind(), got)
	}
	if err := c.Decode(data[1:], &m); err != nil {
		return m, Errorf(ErrDecodeFailed, "%s payload: %v", m.kind(), err)
	}
	return m, nil
}

// decodeReply decodes a response envelope, surfacing a remote Error
// payload as the local error
func decodeReply[M Message](c codec.Codec, data []byte) (M, error) {
	var zero M
	if PeekKind(data) == KindError {
		remote, err := Decode[Error](c, data)
		if err != nil {
			return zero, err
		}
		return zero, remote
	}
	return Decode[M](c, data)
}
