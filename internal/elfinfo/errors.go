package elfinfo

import (
	"errors"
	"fmt"
)

// Error codes for elfinfo errors.
const (
	ErrCodeNoDWARF         = "NO_DWARF"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
)

// NoDWARFError is returned when the ELF file carries no usable debug information.
type NoDWARFError struct {
	Path string
	Err  error
}

func (e *NoDWARFError) Error() string {
	return fmt.Sprintf("%s has no DWARF debug info: %v", e.Path, e.Err)
}

func (e *NoDWARFError) Unwrap() error { return e.Err }

// Code returns the stable error code.
func (e *NoDWARFError) Code() string { return ErrCodeNoDWARF }

// UnsupportedTypeError reports a DWARF type with no layout equivalent, such
// as a function type, a union or a forward declaration. Variables of such types are
// skipped; pointers to them become *void.
type UnsupportedTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported DWARF type %s: %s", e.Type, e.Reason)
}

// Code returns the stable error code.
func (e *UnsupportedTypeError) Code() string { return ErrCodeUnsupportedType }

// IsNoDWARF reports whether err is a NoDWARFError.
func IsNoDWARF(err error) bool {
	var e *NoDWARFError
	return errors.As(err, &e)
}

// IsUnsupportedType reports whether err is an UnsupportedTypeError.
func IsUnsupportedType(err error) bool {
	var e *UnsupportedTypeError
	return errors.As(err, &e)
}
