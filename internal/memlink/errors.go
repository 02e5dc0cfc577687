package memlink

import (
	"errors"
	"fmt"
)

// UnmappedError reports a transfer that does not fall inside one mapped region.
type UnmappedError struct {
	Address uint64
	Length  int
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("unmapped: %d bytes at 0x%x", e.Length, e.Address)
}

// ReadOnlyError reports a write into a read-only region.
type ReadOnlyError struct {
	Region  string
	Address uint64
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("region %s is read-only (write at 0x%x)", e.Region, e.Address)
}

// IsUnmapped returns true if the error is an UnmappedError.
func IsUnmapped(err error) bool {
	var ue *UnmappedError
	return errors.As(err, &ue)
}

// IsReadOnly returns true if the error is a ReadOnlyError.
func IsReadOnly(err error) bool {
	var re *ReadOnlyError
	return errors.As(err, &re)
}
