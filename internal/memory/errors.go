package memory

import (
	"errors"
	"fmt"
)

// Stable error codes.
const (
	ErrCodeTypeMismatch = "TYPE_MISMATCH"
	ErrCodeSizeMismatch = "SIZE_MISMATCH"
	ErrCodeTransport    = "TRANSPORT"
)

// ErrShortRead is wrapped in a TransportError when a link returns fewer bytes
// than requested.
var ErrShortRead = errors.New("short read")

// TypeMismatchError reports a value whose shape does not fit the target type.
type TypeMismatchError struct {
	Type   string // type name
	At     string // position inside the value, such as ".someA.a" or "[1]"; empty at the top
	Want   string // expected shape
	Got    string // shape of the supplied value
	Reason string
}

func (e *TypeMismatchError) Error() string {
	where := e.Type
	if e.At != "" {
		where = e.At + " (" + e.Type + ")"
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: want %s, got %s: %s", ErrCodeTypeMismatch, where, e.Want, e.Got, e.Reason)
	}
	return fmt.Sprintf("%s: %s: want %s, got %s", ErrCodeTypeMismatch, where, e.Want, e.Got)
}

// Code returns the stable error code.
func (e *TypeMismatchError) Code() string { return ErrCodeTypeMismatch }

// SizeMismatchError reports a byte slice whose length differs from the
// location or type it is written to or decoded as.
type SizeMismatchError struct {
	Path string
	Want uint64
	Got  int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: want %d bytes, got %d", ErrCodeSizeMismatch, e.Path, e.Want, e.Got)
}

// Code returns the stable error code.
func (e *SizeMismatchError) Code() string { return ErrCodeSizeMismatch }

// TransportError wraps a Link failure. Unwrap returns the link's error
// unchanged so callers can match transport-specific errors.
type TransportError struct {
	Op      string // "read" or "write"
	Address uint64
	Length  int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %d bytes at 0x%x: %v", ErrCodeTransport, e.Op, e.Length, e.Address, e.Err)
}

// Unwrap returns the underlying link error.
func (e *TransportError) Unwrap() error { return e.Err }

// Code returns the stable error code.
func (e *TransportError) Code() string { return ErrCodeTransport }

// IsTypeMismatch returns true if the error is a TypeMismatchError.
// Uses errors.As to handle wrapped errors.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// IsSizeMismatch returns true if the error is a SizeMismatchError.
func IsSizeMismatch(err error) bool {
	var se *SizeMismatchError
	return errors.As(err, &se)
}

// IsTransport returns true if the error is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
