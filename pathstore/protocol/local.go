package protocol

import (
	"context"
)

// Local is the in-process transport: it hands envelopes straight to a
// producer. Useful for tests and for wiring two stores in one process.
type Local struct {
	Producer *Producer
}

// RoundTrip implements Transport
func (l Local) RoundTrip(ctx context.Context, envelope []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Producer.HandleEnvelope(envelope), nil
}
