// Package resolve maps variable paths such as "nestedStructArray[0].someA.a"
// to absolute target locations.
//
// Resolution is pure computation over an immutable TypeGraph and SymbolTable:
// a Resolver never touches target memory and is safe for concurrent use.
// Pointer slots resolve to the slot itself; following a pointer means reading
// its value and calling ResolveAt with the pointee type.
package resolve

import (
	"math/bits"
	"strconv"

	"github.com/roach88/varpath/internal/symtab"
	"github.com/roach88/varpath/internal/typegraph"
)

// Location is the result of resolving a path: where a value lives, how many
// bytes it spans and how to decode it.
//
// A Location is only valid for the graph it was resolved against; addresses
// change when the target is relinked, so Locations must not be persisted.
type Location struct {
	Path    string
	Address uint64
	Size    uint64
	Type    typegraph.TypeID
}

// Resolver resolves paths against one graph and symbol table.
type Resolver struct {
	graph   *typegraph.Graph
	symbols *symtab.Table
}

// New creates a Resolver.
func New(graph *typegraph.Graph, symbols *symtab.Table) *Resolver {
	return &Resolver{graph: graph, symbols: symbols}
}

// Graph returns the type graph the resolver works against.
func (r *Resolver) Graph() *typegraph.Graph {
	return r.graph
}

// Resolve parses path and walks it from its leading symbol.
//
// Errors: *SyntaxError, *symtab.UnknownSymbolError, *FieldNotFoundError,
// *IndexOutOfRangeError, *AddressOverflowError.
func (r *Resolver) Resolve(path string) (Location, error) {
	segs, err := Parse(path)
	if err != nil {
		return Location{}, err
	}

	sym, err := r.symbols.Lookup(segs[0].Name)
	if err != nil {
		return Location{}, err
	}

	return r.walk(path, sym.Name, sym.Address, sym.Type, segs, 1)
}

// ResolveAt resolves tail (such as ".a" or "[1].someA", possibly empty)
// starting from a raw address interpreted as typeName. It is how callers
// follow a pointer: read the pointer slot, then resolve from its value.
func (r *Resolver) ResolveAt(address uint64, typeName, tail string) (Location, error) {
	id, ok := r.graph.Lookup(typeName)
	if !ok {
		return Location{}, &UnknownTypeError{Name: typeName}
	}

	segs, err := ParseTail(tail)
	if err != nil {
		return Location{}, err
	}

	root := "(" + typeName + ")@0x" + strconv.FormatUint(address, 16)
	return r.walk(root+tail, root, address, id, segs, 0)
}

// walk applies segs[start:] to (addr, id).
func (r *Resolver) walk(path, prefix string, addr uint64, id typegraph.TypeID, segs []Segment, start int) (Location, error) {
	for i := start; i < len(segs); i++ {
		seg := segs[i]

		switch seg.Kind {
		case SegmentField:
			st, ok := r.graph.Type(id).(*typegraph.Struct)
			if !ok {
				return Location{}, &FieldNotFoundError{
					Path: path, Segment: i, Prefix: prefix, Field: seg.Name, Type: r.graph.Name(id),
				}
			}
			f, ok := st.Field(seg.Name)
			if !ok {
				return Location{}, &FieldNotFoundError{
					Path: path, Segment: i, Prefix: prefix, Field: seg.Name, Type: r.graph.Name(id),
					Valid: st.FieldNames(),
				}
			}
			next, carry := bits.Add64(addr, f.Offset, 0)
			if carry != 0 {
				return Location{}, &AddressOverflowError{Path: path, Address: addr, Offset: f.Offset}
			}
			addr, id = next, f.Type

		case SegmentIndex:
			arr, ok := r.graph.Type(id).(*typegraph.Array)
			if !ok {
				return Location{}, &IndexOutOfRangeError{
					Path: path, Segment: i, Prefix: prefix, Index: seg.Index, Type: r.graph.Name(id), NotArray: true,
				}
			}
			// Bound check before any arithmetic.
			if seg.Index >= arr.Count {
				return Location{}, &IndexOutOfRangeError{
					Path: path, Segment: i, Prefix: prefix, Index: seg.Index, Count: arr.Count, Type: r.graph.Name(id),
				}
			}
			// Index < Count and Count*stride fits (checked by the graph), so no overflow here.
			offset := seg.Index * r.graph.SizeOf(arr.Elem)
			next, carry := bits.Add64(addr, offset, 0)
			if carry != 0 {
				return Location{}, &AddressOverflowError{Path: path, Address: addr, Offset: offset}
			}
			addr, id = next, arr.Elem
		}

		prefix += seg.String()
	}

	return Location{
		Path:    path,
		Address: addr,
		Size:    r.graph.SizeOf(id),
		Type:    id,
	}, nil
}
