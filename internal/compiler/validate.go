package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/typegraph"
)

// Validation error codes (E200-E299)
const (
	ErrEmptyName        = "E201" // type, field, symbol or enumerator without a name
	ErrDuplicateName    = "E202" // name declared twice in the same scope
	ErrInvalidKind      = "E203" // kind not in ir.ValidKinds
	ErrInvalidTypeRef   = "E204" // reference text does not parse
	ErrUnknownTypeRef   = "E205" // reference names no definition or builtin
	ErrInvalidSize      = "E206" // missing, zero or negative size where one is required
	ErrNegativeOffset   = "E207" // field offset < 0
	ErrFieldOrder       = "E208" // field offsets not ascending
	ErrNegativeCount    = "E209" // array count or dimension < 0
	ErrInvalidByteOrder = "E210" // byte_order is neither "little" nor "big"
	ErrInvalidIdent     = "E211" // symbol or field name is not a C identifier
	ErrMissingTarget    = "E212" // array without elem, pointer or typedef without to
	ErrValueCycle       = "E213" // type contains itself by value
)

// identRe matches names that can appear as path segments.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a layout validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled layout against the metadata rules.
// Returns all errors found (does not fail-fast).
//
// A layout that passes Validate also passes typegraph.Build and symtab.New;
// the reverse is not guaranteed, since Validate is stricter about names.
func Validate(l *ir.Layout) []ValidationError {
	var errs []ValidationError

	if l.ByteOrder != "" && !strings.EqualFold(l.ByteOrder, ir.LittleEndian) && !strings.EqualFold(l.ByteOrder, ir.BigEndian) {
		errs = append(errs, ValidationError{
			Field:   "byte_order",
			Message: fmt.Sprintf("byte order %q must be %q or %q", l.ByteOrder, ir.LittleEndian, ir.BigEndian),
			Code:    ErrInvalidByteOrder,
		})
	}
	if l.PointerSize < 0 || (l.PointerSize > 0 && l.PointerSize != 2 && l.PointerSize != 4 && l.PointerSize != 8) {
		errs = append(errs, ValidationError{
			Field:   "pointer_size",
			Message: fmt.Sprintf("pointer size %d must be 2, 4 or 8", l.PointerSize),
			Code:    ErrInvalidSize,
		})
	}

	defined := make(map[string]bool, len(l.Types))
	for i, td := range l.Types {
		if td.Name == "" {
			continue
		}
		if defined[td.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("types[%d].name", i),
				Message: fmt.Sprintf("duplicate type name: %q", td.Name),
				Code:    ErrDuplicateName,
			})
		}
		defined[td.Name] = true
	}
	known := func(name string) bool {
		return defined[name] || typegraph.IsBuiltin(name)
	}

	for i := range l.Types {
		errs = append(errs, validateTypeDef(&l.Types[i], fmt.Sprintf("types[%d]", i), known)...)
	}

	symbols := make(map[string]bool, len(l.Symbols))
	for i, sym := range l.Symbols {
		field := fmt.Sprintf("symbols[%d]", i)
		switch {
		case sym.Name == "":
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "symbol name is required",
				Code:    ErrEmptyName,
				Line:    sym.Line,
			})
		case !identRe.MatchString(sym.Name):
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("symbol name %q is not an identifier", sym.Name),
				Code:    ErrInvalidIdent,
				Line:    sym.Line,
			})
		case symbols[sym.Name]:
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate symbol name: %q", sym.Name),
				Code:    ErrDuplicateName,
				Line:    sym.Line,
			})
		}
		symbols[sym.Name] = true

		errs = append(errs, validateRef(sym.Type, field+".type", known, false, sym.Line)...)
	}

	for _, c := range AnalyzeCycles(l.Types) {
		if c.Level != LevelError {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "types." + c.Path[0],
			Message: c.Message,
			Code:    ErrValueCycle,
		})
	}

	return errs
}

// validateTypeDef checks one definition. Field is the prefix used in reports.
func validateTypeDef(td *ir.TypeDef, field string, known func(string) bool) []ValidationError {
	var errs []ValidationError

	if td.Name == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: "type name is required",
			Code:    ErrEmptyName,
		})
	}

	if !ir.ValidKinds[td.Kind] {
		return append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("invalid kind %q for type %q", td.Kind, td.Name),
			Code:    ErrInvalidKind,
		})
	}

	switch td.Kind {
	case ir.KindPrimitive:
		if td.Size <= 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".size",
				Message: fmt.Sprintf("primitive %q needs a positive size", td.Name),
				Code:    ErrInvalidSize,
			})
		}
		if td.Float && td.Size != 4 && td.Size != 8 {
			errs = append(errs, ValidationError{
				Field:   field + ".size",
				Message: fmt.Sprintf("float %q must be 4 or 8 bytes, got %d", td.Name, td.Size),
				Code:    ErrInvalidSize,
			})
		}

	case ir.KindStruct:
		if td.Size < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".size",
				Message: fmt.Sprintf("struct %q has negative size %d", td.Name, td.Size),
				Code:    ErrInvalidSize,
			})
		}
		errs = append(errs, validateFields(td, field, known)...)

	case ir.KindArray:
		if td.Elem == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".elem",
				Message: fmt.Sprintf("array %q needs an element type", td.Name),
				Code:    ErrMissingTarget,
			})
		} else {
			errs = append(errs, validateRef(td.Elem, field+".elem", known, false, 0)...)
		}
		if td.Count < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".count",
				Message: fmt.Sprintf("array %q has negative count %d", td.Name, td.Count),
				Code:    ErrNegativeCount,
			})
		}

	case ir.KindEnum:
		if td.Size < 0 || td.Size > 8 {
			errs = append(errs, ValidationError{
				Field:   field + ".size",
				Message: fmt.Sprintf("enum %q size %d out of range 1..8", td.Name, td.Size),
				Code:    ErrInvalidSize,
			})
		}
		seen := make(map[string]bool, len(td.Values))
		for j, ev := range td.Values {
			vf := fmt.Sprintf("%s.values[%d]", field, j)
			if ev.Name == "" {
				errs = append(errs, ValidationError{
					Field:   vf + ".name",
					Message: fmt.Sprintf("enumerator %d of %q has no name", j, td.Name),
					Code:    ErrEmptyName,
				})
				continue
			}
			if seen[ev.Name] {
				errs = append(errs, ValidationError{
					Field:   vf + ".name",
					Message: fmt.Sprintf("duplicate enumerator %q in %q", ev.Name, td.Name),
					Code:    ErrDuplicateName,
				})
			}
			seen[ev.Name] = true
		}

	case ir.KindPointer, ir.KindTypedef:
		if td.To == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("%s %q needs a target type", td.Kind, td.Name),
				Code:    ErrMissingTarget,
			})
		} else {
			errs = append(errs, validateRef(td.To, field+".to", known, td.Kind == ir.KindPointer, 0)...)
		}
		if td.Kind == ir.KindPointer && td.Size != 0 && td.Size != 2 && td.Size != 4 && td.Size != 8 {
			errs = append(errs, ValidationError{
				Field:   field + ".size",
				Message: fmt.Sprintf("pointer %q size %d must be 2, 4 or 8", td.Name, td.Size),
				Code:    ErrInvalidSize,
			})
		}
	}

	return errs
}

func validateFields(td *ir.TypeDef, field string, known func(string) bool) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool, len(td.Fields))
	prev := int64(-1)

	for j, f := range td.Fields {
		ff := fmt.Sprintf("%s.fields[%d]", field, j)

		switch {
		case f.Name == "":
			errs = append(errs, ValidationError{
				Field:   ff + ".name",
				Message: fmt.Sprintf("field %d of %q has no name", j, td.Name),
				Code:    ErrEmptyName,
			})
		case !identRe.MatchString(f.Name):
			errs = append(errs, ValidationError{
				Field:   ff + ".name",
				Message: fmt.Sprintf("field name %q is not an identifier", f.Name),
				Code:    ErrInvalidIdent,
			})
		case names[f.Name]:
			errs = append(errs, ValidationError{
				Field:   ff + ".name",
				Message: fmt.Sprintf("duplicate field %q in %q", f.Name, td.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[f.Name] = true

		if f.Offset < 0 {
			errs = append(errs, ValidationError{
				Field:   ff + ".offset",
				Message: fmt.Sprintf("field %q has negative offset %d", f.Name, f.Offset),
				Code:    ErrNegativeOffset,
			})
		} else if f.Offset < prev {
			errs = append(errs, ValidationError{
				Field:   ff + ".offset",
				Message: fmt.Sprintf("field %q offset %d precedes previous offset %d", f.Name, f.Offset, prev),
				Code:    ErrFieldOrder,
			})
		}
		if f.Offset > prev {
			prev = f.Offset
		}

		errs = append(errs, validateRef(f.Type, ff+".type", known, false, 0)...)
	}
	return errs
}

// validateRef checks that a reference parses and names a known type.
// void is accepted only as a pointee.
func validateRef(text, field string, known func(string) bool, viaPointer bool, line int) []ValidationError {
	ref, ok := ir.ParseTypeRef(text)
	if !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("invalid type reference %q", text),
			Code:    ErrInvalidTypeRef,
			Line:    line,
		}}
	}

	var errs []ValidationError
	for _, d := range ref.Dims {
		if d < 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("negative array dimension in %q", text),
				Code:    ErrNegativeCount,
				Line:    line,
			})
			break
		}
	}
	if ref.Name == "void" && !known("void") {
		if ref.Pointers == 0 && (!viaPointer || len(ref.Dims) > 0) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("void used by value in %q", text),
				Code:    ErrUnknownTypeRef,
				Line:    line,
			})
		}
	} else if !known(ref.Name) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown type %q", ref.Name),
			Code:    ErrUnknownTypeRef,
			Line:    line,
		})
	}
	return errs
}
