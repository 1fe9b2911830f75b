package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a protocol failure. The kinds travel on the
// wire, so their values are fixed.
type ErrorKind string

const (
	ErrUnknownModel         ErrorKind = "unknownModel"
	ErrUnknownCommand       ErrorKind = "unknownCommand"
	ErrMissingInstance      ErrorKind = "missingInstance"
	ErrMissingArgument      ErrorKind = "missingArgument"
	ErrArgumentDecodeFailed ErrorKind = "argumentDecodeFailed"
	ErrArgumentEncodeFailed ErrorKind = "argumentEncodeFailed"
	ErrPropertyDecodeFailed ErrorKind = "propertyDecodeFailed"
	ErrInvalidEnvelope      ErrorKind = "invalidEnvelope"
	ErrEncodeFailed         ErrorKind = "encodeFailed"
	ErrDecodeFailed         ErrorKind = "decodeFailed"
	ErrStoreFailed          ErrorKind = "storeFailed"
)

// Error is both the protocol's error value and its wire payload: a
// producer encodes one as the response rather than failing the
// exchange, so a remote caller always receives a well-formed envelope.
type Error struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Errorf builds a protocol error with a formatted detail
func Errorf(kind ErrorKind, format string, args ...interface{}) Error {
	return Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is matches errors of the same kind, so callers can branch with
// errors.Is(err, protocol.Error{Kind: protocol.ErrUnknownModel})
func (e Error) Is(target error) bool {
	other, ok := target.(Error)
	return ok && e.Kind == other.Kind
}

// AsError coerces any error into a protocol Error. One that already is
// keeps its kind; anything else is a local store failure as far as the
// protocol is concerned.
func AsError(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return Error{Kind: ErrStoreFailed, Detail: err.Error()}
}
