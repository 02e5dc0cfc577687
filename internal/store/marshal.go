package store

import (
	"fmt"

	"github.com/roach88/varpath/internal/ir"
)

// marshalValue converts a Value to JSON TEXT for storage.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON TEXT back into a Value.
//
// The result is in caller-input form: enum names come back as String and
// struct members key-sorted. Both are accepted by Set, which is what replay
// needs.
func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// SQLite integers are signed; addresses are stored as their bit pattern.
func addressToDB(addr uint64) int64   { return int64(addr) }
func addressFromDB(addr int64) uint64 { return uint64(addr) }
