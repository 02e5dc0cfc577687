package typegraph

import (
	"errors"
	"fmt"
)

// ErrCodeMalformedType is the stable code for MalformedTypeError.
const ErrCodeMalformedType = "MALFORMED_TYPE"

// MalformedTypeError reports type metadata that cannot form a valid graph:
// negative offsets or counts, overlapping fields, unknown references,
// structs that contain themselves by value, unknown kinds.
type MalformedTypeError struct {
	// Type is the definition being built (or the symbol referring to it).
	Type string

	// Field is the member or attribute at fault, empty when the whole
	// definition is at fault.
	Field string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *MalformedTypeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: type %s, field %s: %s", ErrCodeMalformedType, e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: type %s: %s", ErrCodeMalformedType, e.Type, e.Reason)
}

// Code returns the stable error code.
func (e *MalformedTypeError) Code() string { return ErrCodeMalformedType }

// IsMalformedType returns true if the error is a MalformedTypeError.
// Uses errors.As to handle wrapped errors.
func IsMalformedType(err error) bool {
	var me *MalformedTypeError
	return errors.As(err, &me)
}

func malformed(typ, field, format string, args ...any) *MalformedTypeError {
	return &MalformedTypeError{Type: typ, Field: field, Reason: fmt.Sprintf(format, args...)}
}
