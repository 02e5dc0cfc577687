package varstore

import (
	"errors"
	"fmt"
)

// ErrCodeNotPointer is the stable code of NotPointerError.
const ErrCodeNotPointer = "NOT_POINTER"

// NotPointerError reports Follow on a path that does not hold a typed pointer.
// Pointers to void cannot be followed either.
type NotPointerError struct {
	Path string
	Type string
}

func (e *NotPointerError) Error() string {
	return fmt.Sprintf("%s: %s has type %s, not a typed pointer", ErrCodeNotPointer, e.Path, e.Type)
}

// Code returns the stable error code.
func (e *NotPointerError) Code() string { return ErrCodeNotPointer }

// IsNotPointer returns true if the error is a NotPointerError.
func IsNotPointer(err error) bool {
	var ne *NotPointerError
	return errors.As(err, &ne)
}
