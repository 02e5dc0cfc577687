package varstore

import (
	"fmt"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/resolve"
	"github.com/roach88/varpath/internal/symtab"
	"github.com/roach88/varpath/internal/typegraph"
)

// Snapshot is the immutable metadata of one loaded binary: its type graph,
// symbol table and a resolver over both. A Snapshot is never modified; a
// reload builds a new one.
type Snapshot struct {
	Layout     ir.Layout
	Graph      *typegraph.Graph
	Symbols    *symtab.Table
	Resolver   *resolve.Resolver
	LayoutHash string
}

// NewSnapshot builds the type graph and symbol table for layout.
// Load-time errors (*typegraph.MalformedTypeError, *symtab.DuplicateSymbolError)
// are returned unwrapped.
func NewSnapshot(layout ir.Layout) (*Snapshot, error) {
	graph, err := typegraph.Build(layout)
	if err != nil {
		return nil, err
	}
	symbols, err := symtab.New(graph, layout.Symbols)
	if err != nil {
		return nil, err
	}
	hash, err := ir.LayoutHash(layout)
	if err != nil {
		return nil, fmt.Errorf("hash layout: %w", err)
	}

	return &Snapshot{
		Layout:     layout,
		Graph:      graph,
		Symbols:    symbols,
		Resolver:   resolve.New(graph, symbols),
		LayoutHash: hash,
	}, nil
}
