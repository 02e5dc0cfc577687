package ir

import (
	"strconv"
	"strings"
)

// Kind names the shape of a TypeDef.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindStruct    Kind = "struct"
	KindArray     Kind = "array"
	KindEnum      Kind = "enum"
	KindPointer   Kind = "pointer"
	KindTypedef   Kind = "typedef"
)

// ValidKinds defines allowed TypeDef kinds.
var ValidKinds = map[Kind]bool{
	KindPrimitive: true,
	KindStruct:    true,
	KindArray:     true,
	KindEnum:      true,
	KindPointer:   true,
	KindTypedef:   true,
}

// Byte orders accepted in Layout.ByteOrder.
const (
	LittleEndian = "little"
	BigEndian    = "big"
)

// DefaultPointerSize is the pointer width assumed when a layout does not declare one.
// Matches 32-bit ARM targets.
const DefaultPointerSize = 4

// Layout is the complete input metadata for one loaded binary:
// every declared type plus every global symbol with its address.
type Layout struct {
	Source      string      `json:"source,omitempty" yaml:"source,omitempty"`             // file the layout was loaded from
	ByteOrder   string      `json:"byte_order,omitempty" yaml:"byte_order,omitempty"`     // "little" | "big"
	PointerSize int64       `json:"pointer_size,omitempty" yaml:"pointer_size,omitempty"` // bytes
	Types       []TypeDef   `json:"types" yaml:"types"`
	Symbols     []SymbolDef `json:"symbols" yaml:"symbols"`
}

// TypeDef is a named type definition. Which fields are meaningful depends on Kind:
//
//	primitive: Size, Signed, Float, Bool
//	struct:    Fields, Size (optional declared byte size)
//	array:     Elem, Count
//	enum:      Size (underlying width), Values
//	pointer:   To, Size (optional, defaults to Layout.PointerSize)
//	typedef:   To
type TypeDef struct {
	Name   string      `json:"name" yaml:"name"`
	Kind   Kind        `json:"kind" yaml:"kind"`
	Size   int64       `json:"size,omitempty" yaml:"size,omitempty"`
	Signed bool        `json:"signed,omitempty" yaml:"signed,omitempty"`
	Float  bool        `json:"float,omitempty" yaml:"float,omitempty"`
	Bool   bool        `json:"bool,omitempty" yaml:"bool,omitempty"`
	Fields []FieldDef  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Elem   string      `json:"elem,omitempty" yaml:"elem,omitempty"`
	Count  int64       `json:"count,omitempty" yaml:"count,omitempty"`
	Values []EnumValue `json:"values,omitempty" yaml:"values,omitempty"`
	To     string      `json:"to,omitempty" yaml:"to,omitempty"`
}

// FieldDef is one struct member. Type is a type reference (see ParseTypeRef).
type FieldDef struct {
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type"`
	Offset int64  `json:"offset" yaml:"offset"`
}

// EnumValue is one named enumerator.
type EnumValue struct {
	Name  string `json:"name" yaml:"name"`
	Value int64  `json:"value" yaml:"value"`
}

// SymbolDef is a global variable entry: name, type reference and absolute address.
// Section, File and Line are informational only.
type SymbolDef struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Address uint64 `json:"address" yaml:"address"`
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// EffectivePointerSize returns PointerSize or DefaultPointerSize when unset.
func (l *Layout) EffectivePointerSize() int64 {
	if l.PointerSize > 0 {
		return l.PointerSize
	}
	return DefaultPointerSize
}

// IsBigEndian reports whether the layout declares big-endian byte order.
func (l *Layout) IsBigEndian() bool {
	return strings.EqualFold(l.ByteOrder, BigEndian)
}

// TypeRef is a parsed type reference.
//
// Grammar: '*'* Name ('[' N ']')*
//
// Pointers bind to the base name, array suffixes wrap outermost-first the way C
// declarators do: "uint8_t[2][3]" is an array of 2 arrays of 3 uint8_t, and
// "*Node[4]" is an array of 4 pointers to Node.
type TypeRef struct {
	Name     string
	Pointers int
	Dims     []int64
}

// ParseTypeRef parses a type reference string. It does not check that Name exists.
// Returns ok=false on malformed input (empty name, bad dimension).
func ParseTypeRef(s string) (TypeRef, bool) {
	var ref TypeRef
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "*") {
		ref.Pointers++
		s = strings.TrimSpace(s[1:])
	}

	if i := strings.IndexByte(s, '['); i >= 0 {
		dims := s[i:]
		s = strings.TrimSpace(s[:i])
		for dims != "" {
			if dims[0] != '[' {
				return TypeRef{}, false
			}
			end := strings.IndexByte(dims, ']')
			if end < 0 {
				return TypeRef{}, false
			}
			n, ok := parseDim(dims[1:end])
			if !ok {
				return TypeRef{}, false
			}
			ref.Dims = append(ref.Dims, n)
			dims = dims[end+1:]
		}
	}

	if s == "" {
		return TypeRef{}, false
	}
	ref.Name = s
	return ref, true
}

// IsNamed reports whether the reference is a bare name without pointer or array parts.
func (r TypeRef) IsNamed() bool {
	return r.Pointers == 0 && len(r.Dims) == 0
}

// String renders the reference in canonical form.
func (r TypeRef) String() string {
	var b strings.Builder
	for i := 0; i < r.Pointers; i++ {
		b.WriteByte('*')
	}
	b.WriteString(r.Name)
	for _, d := range r.Dims {
		b.WriteByte('[')
		b.WriteString(strconv.FormatInt(d, 10))
		b.WriteByte(']')
	}
	return b.String()
}

// parseDim parses a decimal array dimension. Negative values are accepted here
// so the type graph can report them as malformed metadata.
func parseDim(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
