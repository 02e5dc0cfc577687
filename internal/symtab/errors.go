package symtab

import (
	"errors"
	"fmt"
	"strings"
)

// Stable error codes.
const (
	ErrCodeUnknownSymbol   = "UNKNOWN_SYMBOL"
	ErrCodeDuplicateSymbol = "DUPLICATE_SYMBOL"
)

// UnknownSymbolError is returned by Lookup for a name not in the table.
type UnknownSymbolError struct {
	Name        string
	Suggestions []string // names that look similar, possibly empty
}

// Error implements the error interface.
func (e *UnknownSymbolError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("%s: %q (did you mean %s?)", ErrCodeUnknownSymbol, e.Name, strings.Join(e.Suggestions, ", "))
	}
	return fmt.Sprintf("%s: %q", ErrCodeUnknownSymbol, e.Name)
}

// Code returns the stable error code.
func (e *UnknownSymbolError) Code() string { return ErrCodeUnknownSymbol }

// DuplicateSymbolError is returned by New when two definitions share a name.
type DuplicateSymbolError struct {
	Name          string
	FirstAddress  uint64
	SecondAddress uint64
}

// Error implements the error interface.
func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("%s: %q defined at 0x%x and 0x%x", ErrCodeDuplicateSymbol, e.Name, e.FirstAddress, e.SecondAddress)
}

// Code returns the stable error code.
func (e *DuplicateSymbolError) Code() string { return ErrCodeDuplicateSymbol }

// IsUnknownSymbol returns true if the error is an UnknownSymbolError.
// Uses errors.As to handle wrapped errors.
func IsUnknownSymbol(err error) bool {
	var ue *UnknownSymbolError
	return errors.As(err, &ue)
}

// IsDuplicateSymbol returns true if the error is a DuplicateSymbolError.
func IsDuplicateSymbol(err error) bool {
	var de *DuplicateSymbolError
	return errors.As(err, &de)
}
