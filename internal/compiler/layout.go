package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/varpath/internal/ir"
)

// CompileLayout converts a CUE value into a Layout.
// Uses the CUE Go API directly, so YAML and JSON input decoded into CUE
// values take the same path.
//
// types and symbols may each be written as a struct keyed by name or as a
// list of entries carrying a name field:
//
//	types: SomeA: {kind: "struct", fields: [{name: "a", type: "uint8_t", offset: 0}]}
//	symbols: [{name: "someA", type: "SomeA", address: 0x1000}]
func CompileLayout(v cue.Value) (*ir.Layout, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	layout := &ir.Layout{}
	var err error

	if layout.Source, err = optString(v, "source"); err != nil {
		return nil, err
	}
	if layout.ByteOrder, err = optString(v, "byte_order"); err != nil {
		return nil, err
	}
	if layout.PointerSize, err = optInt(v, "pointer_size"); err != nil {
		return nil, err
	}

	err = eachEntry(v, "types", func(name string, e cue.Value) error {
		td, err := compileTypeDef(name, e)
		if err != nil {
			return err
		}
		layout.Types = append(layout.Types, td)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(v, "symbols", func(name string, e cue.Value) error {
		sd, err := compileSymbolDef(name, e)
		if err != nil {
			return err
		}
		layout.Symbols = append(layout.Symbols, sd)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(layout.Types) == 0 && len(layout.Symbols) == 0 {
		return nil, &CompileError{
			Field:   "symbols",
			Message: "layout declares no types and no symbols",
			Pos:     v.Pos(),
		}
	}

	return layout, nil
}

// eachEntry visits the entries of a struct-or-list field. In struct form the
// label is the entry name; in list form the name comes from the entry.
func eachEntry(v cue.Value, field string, fn func(name string, e cue.Value) error) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}

	switch fv.IncompleteKind() {
	case cue.StructKind:
		iter, err := fv.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			e := iter.Value()
			name := iter.Selector().Unquoted()
			if explicit, err := optString(e, "name"); err != nil {
				return err
			} else if explicit != "" && explicit != name {
				return &CompileError{
					Field:   field + "." + name + ".name",
					Message: fmt.Sprintf("name %q does not match key %q", explicit, name),
					Pos:     e.Pos(),
				}
			}
			if err := fn(name, e); err != nil {
				return err
			}
		}
		return nil

	case cue.ListKind:
		iter, err := fv.List()
		if err != nil {
			return formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			e := iter.Value()
			name, err := optString(e, "name")
			if err != nil {
				return err
			}
			if name == "" {
				return &CompileError{
					Field:   fmt.Sprintf("%s[%d].name", field, i),
					Message: "name is required",
					Pos:     e.Pos(),
				}
			}
			if err := fn(name, e); err != nil {
				return err
			}
		}
		return nil

	default:
		return &CompileError{
			Field:   field,
			Message: "must be a struct keyed by name or a list",
			Pos:     fv.Pos(),
		}
	}
}

func compileTypeDef(name string, v cue.Value) (ir.TypeDef, error) {
	td := ir.TypeDef{Name: name}

	kind, err := optString(v, "kind")
	if err != nil {
		return td, err
	}
	if kind == "" {
		return td, &CompileError{
			Field:   "types." + name + ".kind",
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	td.Kind = ir.Kind(kind)

	if td.Size, err = optInt(v, "size"); err != nil {
		return td, err
	}
	if td.Signed, err = optBool(v, "signed"); err != nil {
		return td, err
	}
	if td.Float, err = optBool(v, "float"); err != nil {
		return td, err
	}
	if td.Bool, err = optBool(v, "bool"); err != nil {
		return td, err
	}
	if td.Elem, err = optString(v, "elem"); err != nil {
		return td, err
	}
	if td.Count, err = optInt(v, "count"); err != nil {
		return td, err
	}
	if td.To, err = optString(v, "to"); err != nil {
		return td, err
	}
	if td.Fields, err = compileFields(name, v); err != nil {
		return td, err
	}
	if td.Values, err = compileEnumValues(name, v); err != nil {
		return td, err
	}
	return td, nil
}

func compileFields(owner string, v cue.Value) ([]ir.FieldDef, error) {
	fv := v.LookupPath(cue.ParsePath("fields"))
	if !fv.Exists() {
		return nil, nil
	}

	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "types." + owner + ".fields",
			Message: "fields must be a list of {name, type, offset}",
			Pos:     fv.Pos(),
		}
	}

	var fields []ir.FieldDef
	for iter.Next() {
		e := iter.Value()
		var f ir.FieldDef
		if f.Name, err = optString(e, "name"); err != nil {
			return nil, err
		}
		if f.Type, err = optString(e, "type"); err != nil {
			return nil, err
		}
		if f.Offset, err = optInt(e, "offset"); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// compileEnumValues accepts {Name: value, ...} or [{name, value}, ...].
// Struct form is ordered by value then name, since map keys carry no order
// once a YAML or JSON document has been decoded.
func compileEnumValues(owner string, v cue.Value) ([]ir.EnumValue, error) {
	fv := v.LookupPath(cue.ParsePath("values"))
	if !fv.Exists() {
		return nil, nil
	}

	var values []ir.EnumValue
	switch fv.IncompleteKind() {
	case cue.StructKind:
		iter, err := fv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			n, err := iter.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			values = append(values, ir.EnumValue{Name: iter.Selector().Unquoted(), Value: n})
		}
		sort.SliceStable(values, func(i, j int) bool {
			if values[i].Value != values[j].Value {
				return values[i].Value < values[j].Value
			}
			return values[i].Name < values[j].Name
		})

	case cue.ListKind:
		iter, err := fv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			e := iter.Value()
			var ev ir.EnumValue
			if ev.Name, err = optString(e, "name"); err != nil {
				return nil, err
			}
			if ev.Value, err = optInt(e, "value"); err != nil {
				return nil, err
			}
			values = append(values, ev)
		}

	default:
		return nil, &CompileError{
			Field:   "types." + owner + ".values",
			Message: "values must be a struct of name: value or a list of {name, value}",
			Pos:     fv.Pos(),
		}
	}
	return values, nil
}

func compileSymbolDef(name string, v cue.Value) (ir.SymbolDef, error) {
	sd := ir.SymbolDef{Name: name}
	var err error

	if sd.Type, err = optString(v, "type"); err != nil {
		return sd, err
	}
	if sd.Type == "" {
		return sd, &CompileError{
			Field:   "symbols." + name + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}

	av := v.LookupPath(cue.ParsePath("address"))
	if !av.Exists() {
		return sd, &CompileError{
			Field:   "symbols." + name + ".address",
			Message: "address is required",
			Pos:     v.Pos(),
		}
	}
	if sd.Address, err = address(av); err != nil {
		return sd, &CompileError{
			Field:   "symbols." + name + ".address",
			Message: err.Error(),
			Pos:     av.Pos(),
		}
	}

	if sd.Section, err = optString(v, "section"); err != nil {
		return sd, err
	}
	if sd.File, err = optString(v, "file"); err != nil {
		return sd, err
	}
	line, err := optInt(v, "line")
	if err != nil {
		return sd, err
	}
	sd.Line = int(line)
	return sd, nil
}

// address accepts an integer or a string such as "0x20000000".
func address(v cue.Value) (uint64, error) {
	if s, err := v.String(); err == nil {
		n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address %q", s)
		}
		return n, nil
	}
	n, err := v.Uint64()
	if err != nil {
		return 0, fmt.Errorf("address must be a non-negative integer or hex string")
	}
	return n, nil
}

func optString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func optBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
