package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/resolve"
	"github.com/roach88/varpath/internal/typegraph"
)

// Accessor reads and writes typed values at resolved locations.
//
// Accessor holds no mutable state and is safe for concurrent use as long as
// its Link is.
type Accessor struct {
	graph *typegraph.Graph
	link  Link
	order binary.ByteOrder
}

// AccessorOption configures an Accessor.
type AccessorOption func(*Accessor)

// WithByteOrder overrides the byte order declared by the graph's layout.
func WithByteOrder(order binary.ByteOrder) AccessorOption {
	return func(a *Accessor) {
		a.order = order
	}
}

// New creates an Accessor over graph and link.
// The byte order defaults to the graph's.
func New(graph *typegraph.Graph, link Link, opts ...AccessorOption) *Accessor {
	a := &Accessor{
		graph: graph,
		link:  link,
		order: graph.ByteOrder(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Graph returns the type graph values are decoded against.
func (a *Accessor) Graph() *typegraph.Graph {
	return a.graph
}

// Read returns exactly loc.Size bytes from target memory.
// Link failures and short reads are reported as *TransportError.
func (a *Accessor) Read(ctx context.Context, loc resolve.Location) ([]byte, error) {
	if loc.Size > math.MaxInt32 {
		return nil, &TransportError{Op: "read", Address: loc.Address, Length: -1,
			Err: fmt.Errorf("location size %d too large for one transfer", loc.Size)}
	}
	n := int(loc.Size)

	data, err := a.link.ReadBytes(ctx, loc.Address, n)
	if err != nil {
		return nil, &TransportError{Op: "read", Address: loc.Address, Length: n, Err: err}
	}
	if len(data) != n {
		return nil, &TransportError{Op: "read", Address: loc.Address, Length: n,
			Err: fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, len(data), n)}
	}
	return data, nil
}

// Write stores data at loc. len(data) must equal loc.Size, otherwise
// *SizeMismatchError is returned and nothing is sent to the link.
func (a *Accessor) Write(ctx context.Context, loc resolve.Location, data []byte) error {
	if uint64(len(data)) != loc.Size {
		return &SizeMismatchError{Path: loc.Path, Want: loc.Size, Got: len(data)}
	}
	if err := a.link.WriteBytes(ctx, loc.Address, data); err != nil {
		return &TransportError{Op: "write", Address: loc.Address, Length: len(data), Err: err}
	}
	return nil
}

// Get reads and decodes the value at loc.
func (a *Accessor) Get(ctx context.Context, loc resolve.Location) (ir.Value, error) {
	data, err := a.Read(ctx, loc)
	if err != nil {
		return nil, err
	}
	return a.Decode(data, loc.Type)
}

// Set encodes v as loc's type and writes it.
func (a *Accessor) Set(ctx context.Context, loc resolve.Location, v ir.Value) error {
	data, err := a.Encode(v, loc.Type)
	if err != nil {
		return err
	}
	return a.Write(ctx, loc, data)
}
