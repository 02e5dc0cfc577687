// Package memory reads and writes typed values in target memory.
//
// An Accessor turns resolved locations into byte transfers over a Link and
// converts between raw bytes and ir.Value according to the type graph. The
// Link is the only blocking collaborator: it receives the caller's context
// and owns any timeout or retry policy. The Accessor never retries.
package memory

import "context"

// Link transfers raw bytes to and from target memory: a debug probe, a
// simulator, or a file image.
//
// ReadBytes returns exactly n bytes or an error. WriteBytes writes all of
// data or returns an error.
type Link interface {
	ReadBytes(ctx context.Context, addr uint64, n int) ([]byte, error)
	WriteBytes(ctx context.Context, addr uint64, data []byte) error
}
