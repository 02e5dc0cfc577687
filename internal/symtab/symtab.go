// Package symtab maps global variable names to their type and address.
//
// A Table is built once per loaded layout and is read-only afterwards.
// Section names are carried for display and grouping only; lookup and
// resolution never depend on them.
package symtab

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/typegraph"
)

// Symbol is one global variable.
type Symbol struct {
	Name    string
	Type    typegraph.TypeID
	Address uint64
	Section string // advisory
	File    string // advisory
	Line    int    // advisory
}

// Table is an immutable name -> Symbol map.
type Table struct {
	byName map[string]Symbol
	sorted []string
}

// maxSuggestions bounds UnknownSymbolError.Suggestions.
const maxSuggestions = 5

// New builds a Table from symbol definitions resolved against graph.
//
// Fails with *DuplicateSymbolError if two definitions share a name, and with
// *typegraph.MalformedTypeError if a definition's type is unknown or malformed.
func New(graph *typegraph.Graph, defs []ir.SymbolDef) (*Table, error) {
	t := &Table{
		byName: make(map[string]Symbol, len(defs)),
		sorted: make([]string, 0, len(defs)),
	}

	for _, d := range defs {
		if existing, dup := t.byName[d.Name]; dup {
			return nil, &DuplicateSymbolError{
				Name:          d.Name,
				FirstAddress:  existing.Address,
				SecondAddress: d.Address,
			}
		}
		if d.Name == "" {
			return nil, &typegraph.MalformedTypeError{Type: d.Type, Reason: "symbol without a name"}
		}

		id, err := typeOf(graph, d)
		if err != nil {
			return nil, err
		}

		t.byName[d.Name] = Symbol{
			Name:    d.Name,
			Type:    id,
			Address: d.Address,
			Section: d.Section,
			File:    d.File,
			Line:    d.Line,
		}
		t.sorted = append(t.sorted, d.Name)
	}

	slices.Sort(t.sorted)
	return t, nil
}

// typeOf finds the symbol's type. typegraph.Build interns every inline
// reference a layout's symbols use, so a miss here means the graph was built
// from different metadata.
func typeOf(graph *typegraph.Graph, d ir.SymbolDef) (typegraph.TypeID, error) {
	if d.Type == "" {
		return typegraph.NoType, &typegraph.MalformedTypeError{
			Type: d.Name, Field: "type", Reason: "symbol without a type",
		}
	}
	if id, ok := graph.Lookup(d.Type); ok {
		return id, nil
	}
	return typegraph.NoType, &typegraph.MalformedTypeError{
		Type:   d.Name,
		Field:  "type",
		Reason: fmt.Sprintf("unknown type %q", d.Type),
	}
}

// Lookup returns the symbol named name.
// Fails with *UnknownSymbolError carrying near-miss suggestions.
func (t *Table) Lookup(name string) (Symbol, error) {
	if s, ok := t.byName[name]; ok {
		return s, nil
	}
	return Symbol{}, &UnknownSymbolError{Name: name, Suggestions: t.suggest(name)}
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	return len(t.sorted)
}

// Symbols returns all symbols sorted by name.
func (t *Table) Symbols() []Symbol {
	out := make([]Symbol, len(t.sorted))
	for i, name := range t.sorted {
		out[i] = t.byName[name]
	}
	return out
}

// Sections groups symbol names by section; symbols without a section are
// grouped under "". Names within a section are sorted.
func (t *Table) Sections() map[string][]string {
	out := make(map[string][]string)
	for _, name := range t.sorted {
		sec := t.byName[name].Section
		out[sec] = append(out[sec], name)
	}
	return out
}

// suggest returns names sharing a case-insensitive prefix with name,
// or containing it, for diagnostics.
func (t *Table) suggest(name string) []string {
	if name == "" {
		return nil
	}
	lower := strings.ToLower(name)
	prefix := lower
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	var out []string
	for _, candidate := range t.sorted {
		c := strings.ToLower(candidate)
		if strings.HasPrefix(c, prefix) || strings.Contains(c, lower) {
			out = append(out, candidate)
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}
