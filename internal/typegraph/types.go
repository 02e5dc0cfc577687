package typegraph

import "github.com/roach88/varpath/internal/ir"

// TypeID indexes a node in a Graph's arena.
// Cross-references between types are always TypeIDs, so a self-referential
// struct is one node reached by index rather than a copied cycle.
type TypeID int

// NoType is the zero-value sentinel for "no type".
const NoType TypeID = -1

// Type is a sealed interface for type descriptors.
// Only *Primitive, *Struct, *Array, *Enum and *Pointer implement it.
type Type interface {
	typeNode() // Sealed - only these types implement it
}

// Primitive is a scalar of fixed width.
// Float and Bool are mutually exclusive; Signed only applies to integers.
type Primitive struct {
	Width  int
	Signed bool
	Float  bool
	Bool   bool
}

func (*Primitive) typeNode() {}

// Field is one struct member. Offset is relative to the start of the struct.
type Field struct {
	Name   string
	Type   TypeID
	Offset uint64
}

// Struct is an ordered list of members with verbatim offsets.
// DeclaredSize is the size taken from metadata, 0 when absent.
type Struct struct {
	Fields       []Field
	DeclaredSize uint64
}

func (*Struct) typeNode() {}

// Field returns the member with the given name.
func (s *Struct) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns member names in declaration order.
func (s *Struct) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Array is a fixed-length sequence of Elem.
type Array struct {
	Elem  TypeID
	Count uint64
}

func (*Array) typeNode() {}

// Enum is an integer of Width bytes with named values.
// Values keeps declaration order; several names may share a value, in which
// case the first declared name wins when decoding.
type Enum struct {
	Width  int
	Signed bool
	Values []ir.EnumValue
}

func (*Enum) typeNode() {}

// NameOf returns the first enumerator whose value is raw.
func (e *Enum) NameOf(raw int64) (string, bool) {
	for _, v := range e.Values {
		if v.Value == raw {
			return v.Name, true
		}
	}
	return "", false
}

// ValueOf returns the value of the named enumerator.
func (e *Enum) ValueOf(name string) (int64, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// Pointer is an address-sized slot referring to Pointee.
type Pointer struct {
	Pointee TypeID
	Width   int
}

func (*Pointer) typeNode() {}

// KindOf returns the layout kind of a type descriptor.
func KindOf(t Type) ir.Kind {
	switch t.(type) {
	case *Primitive:
		return ir.KindPrimitive
	case *Struct:
		return ir.KindStruct
	case *Array:
		return ir.KindArray
	case *Enum:
		return ir.KindEnum
	case *Pointer:
		return ir.KindPointer
	default:
		return ""
	}
}

// builtin describes a primitive that is always available by name.
type builtin struct {
	name string
	prim Primitive
}

// builtins lists the fixed-width base types plus the C spellings at the
// widths of a 32-bit target.
var builtins = []builtin{
	{"uint8_t", Primitive{Width: 1}},
	{"int8_t", Primitive{Width: 1, Signed: true}},
	{"uint16_t", Primitive{Width: 2}},
	{"int16_t", Primitive{Width: 2, Signed: true}},
	{"uint32_t", Primitive{Width: 4}},
	{"int32_t", Primitive{Width: 4, Signed: true}},
	{"uint64_t", Primitive{Width: 8}},
	{"int64_t", Primitive{Width: 8, Signed: true}},
	{"float", Primitive{Width: 4, Float: true}},
	{"double", Primitive{Width: 8, Float: true}},
	{"bool", Primitive{Width: 1, Bool: true}},
	{"_Bool", Primitive{Width: 1, Bool: true}},
	{"char", Primitive{Width: 1, Signed: true}},
	{"signed char", Primitive{Width: 1, Signed: true}},
	{"unsigned char", Primitive{Width: 1}},
	{"short", Primitive{Width: 2, Signed: true}},
	{"short int", Primitive{Width: 2, Signed: true}},
	{"unsigned short", Primitive{Width: 2}},
	{"short unsigned int", Primitive{Width: 2}},
	{"int", Primitive{Width: 4, Signed: true}},
	{"unsigned int", Primitive{Width: 4}},
	{"long", Primitive{Width: 4, Signed: true}},
	{"long int", Primitive{Width: 4, Signed: true}},
	{"unsigned long", Primitive{Width: 4}},
	{"long unsigned int", Primitive{Width: 4}},
	{"long long", Primitive{Width: 8, Signed: true}},
	{"long long int", Primitive{Width: 8, Signed: true}},
	{"unsigned long long", Primitive{Width: 8}},
	{"long long unsigned int", Primitive{Width: 8}},
}

// IsBuiltin reports whether name is always available without a definition.
func IsBuiltin(name string) bool {
	for _, b := range builtins {
		if b.name == name {
			return true
		}
	}
	return false
}
