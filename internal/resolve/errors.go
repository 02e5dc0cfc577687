package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// Stable error codes.
const (
	ErrCodeSyntax          = "PATH_SYNTAX"
	ErrCodeFieldNotFound   = "FIELD_NOT_FOUND"
	ErrCodeIndexOutOfRange = "INDEX_OUT_OF_RANGE"
	ErrCodeUnknownType     = "UNKNOWN_TYPE"
	ErrCodeAddressOverflow = "ADDRESS_OVERFLOW"
)

// SyntaxError reports a path that does not match the path grammar.
type SyntaxError struct {
	Path   string
	Offset int // byte offset of the offending character
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %q at offset %d: %s", ErrCodeSyntax, e.Path, e.Offset, e.Reason)
}

// Code returns the stable error code.
func (e *SyntaxError) Code() string { return ErrCodeSyntax }

// FieldNotFoundError reports a '.field' step that could not be taken, either
// because the current type is not a struct or because it has no such member.
type FieldNotFoundError struct {
	Path    string
	Segment int    // index of the failing segment
	Prefix  string // path resolved before the failing segment
	Field   string
	Type    string   // name of the type the step was applied to
	Valid   []string // member names at that point, nil when Type is not a struct
}

func (e *FieldNotFoundError) Error() string {
	if e.Valid == nil {
		return fmt.Sprintf("%s: %q: %s is %s, not a struct (cannot select .%s)",
			ErrCodeFieldNotFound, e.Path, e.Prefix, e.Type, e.Field)
	}
	return fmt.Sprintf("%s: %q: %s (%s) has no field %q; valid fields: %s",
		ErrCodeFieldNotFound, e.Path, e.Prefix, e.Type, e.Field, strings.Join(e.Valid, ", "))
}

// Code returns the stable error code.
func (e *FieldNotFoundError) Code() string { return ErrCodeFieldNotFound }

// IndexOutOfRangeError reports a '[i]' step outside 0 <= i < Count, or applied
// to a type that is not an array (Count is then 0).
type IndexOutOfRangeError struct {
	Path     string
	Segment  int
	Prefix   string
	Index    uint64
	Count    uint64
	Type     string
	NotArray bool
}

func (e *IndexOutOfRangeError) Error() string {
	if e.NotArray {
		return fmt.Sprintf("%s: %q: %s is %s, not an array (cannot index [%d])",
			ErrCodeIndexOutOfRange, e.Path, e.Prefix, e.Type, e.Index)
	}
	if e.Count == 0 {
		return fmt.Sprintf("%s: %q: index %d out of range for %s (%s is empty)",
			ErrCodeIndexOutOfRange, e.Path, e.Index, e.Prefix, e.Type)
	}
	return fmt.Sprintf("%s: %q: index %d out of range for %s (%s, valid 0..%d)",
		ErrCodeIndexOutOfRange, e.Path, e.Index, e.Prefix, e.Type, e.Count-1)
}

// Code returns the stable error code.
func (e *IndexOutOfRangeError) Code() string { return ErrCodeIndexOutOfRange }

// UnknownTypeError is returned by ResolveAt for a type name the graph does not know.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrCodeUnknownType, e.Name)
}

// Code returns the stable error code.
func (e *UnknownTypeError) Code() string { return ErrCodeUnknownType }

// AddressOverflowError reports a location that would wrap past the top of
// the 64-bit address space.
type AddressOverflowError struct {
	Path    string
	Address uint64
	Offset  uint64
}

func (e *AddressOverflowError) Error() string {
	return fmt.Sprintf("%s: %q: 0x%x + 0x%x wraps", ErrCodeAddressOverflow, e.Path, e.Address, e.Offset)
}

// Code returns the stable error code.
func (e *AddressOverflowError) Code() string { return ErrCodeAddressOverflow }

// IsSyntax returns true if the error is a SyntaxError.
func IsSyntax(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsFieldNotFound returns true if the error is a FieldNotFoundError.
// Uses errors.As to handle wrapped errors.
func IsFieldNotFound(err error) bool {
	var fe *FieldNotFoundError
	return errors.As(err, &fe)
}

// IsIndexOutOfRange returns true if the error is an IndexOutOfRangeError.
// Uses errors.As to handle wrapped errors.
func IsIndexOutOfRange(err error) bool {
	var ie *IndexOutOfRangeError
	return errors.As(err, &ie)
}
