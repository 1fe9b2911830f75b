package codec

// Codec turns typed values into bytes and back. Stores use a codec for
// the samples they hold; the sync protocol uses one for message payloads.
// The two sides of a replication pair must agree on the codec, since
// samples travel as already-encoded bytes.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, out interface{}) error
}
