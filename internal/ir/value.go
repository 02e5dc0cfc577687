package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface for values read from or written to target memory.
// Only Int, Uint, Float, Bool, String, Enum, Pointer, Array and Struct implement it.
//
// Decoding target memory never produces String; String only appears in caller
// input (an enum name, or a hex address for a pointer slot).
type Value interface {
	value() // Sealed - only these types implement it
}

// Int is a signed integer value.
type Int int64

func (Int) value() {}

// Uint is an unsigned integer value.
type Uint uint64

func (Uint) value() {}

// Float is a floating point value (float or double slots).
type Float float64

func (Float) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// String is a textual value supplied by a caller.
type String string

func (String) value() {}

// Pointer is the raw address stored in a pointer slot.
type Pointer uint64

func (Pointer) value() {}

// Enum is a decoded enumeration value.
// Name is empty when Raw does not match any declared enumerator; the raw integer
// is still reported so unnamed values in target memory remain readable.
type Enum struct {
	Name string
	Raw  int64
}

func (Enum) value() {}

// Known reports whether the raw value matched a declared enumerator.
func (e Enum) Known() bool {
	return e.Name != ""
}

// Array is an ordered list of element values.
type Array []Value

func (Array) value() {}

// Field is a named member of a Struct value.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered list of named members.
// Decoded structs keep declaration order; structs built from JSON are key-sorted.
type Struct []Field

func (Struct) value() {}

// Get returns the member value with the given name.
func (s Struct) Get(name string) (Value, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns member names in order.
func (s Struct) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// S is a shorthand for building a Struct field.
// Example: Struct{S("a", Uint(1)), S("b", Uint(2))}
func S(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// KindOf returns a short name for the value's shape, used in diagnostics.
func KindOf(v Value) string {
	switch v.(type) {
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Pointer:
		return "pointer"
	case Enum:
		return "enum"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FormatValue renders a value for human-readable output.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Uint:
		return strconv.FormatUint(uint64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case String:
		return strconv.Quote(string(val))
	case Pointer:
		return fmt.Sprintf("0x%x", uint64(val))
	case Enum:
		if val.Known() {
			return fmt.Sprintf("%s (%d)", val.Name, val.Raw)
		}
		return fmt.Sprintf("<unnamed> (%d)", val.Raw)
	case Array:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = FormatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Struct:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = f.Name + ": " + FormatValue(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalValue marshals a Value to JSON bytes.
// Struct members keep their order; known enums render as their name, unnamed
// enums as the raw integer; pointers render as a "0x..." string.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Int:
		return json.Marshal(int64(val))
	case Uint:
		return json.Marshal(uint64(val))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return json.Marshal(f)
	case Bool:
		return json.Marshal(bool(val))
	case String:
		return json.Marshal(string(val))
	case Pointer:
		return json.Marshal(fmt.Sprintf("0x%x", uint64(val)))
	case Enum:
		if val.Known() {
			return json.Marshal(val.Name)
		}
		return json.Marshal(val.Raw)
	case Array:
		return marshalArray(val)
	case Struct:
		return marshalStruct(val)
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// marshalArray marshals an Array to JSON bytes.
func marshalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalStruct marshals a Struct to a JSON object in member order.
func marshalStruct(s Struct) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", f.Name, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", f.Name, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalValue parses caller-supplied JSON into a Value.
//
// Integers become Int (or Uint above math.MaxInt64), numbers with a fraction or
// exponent become Float, strings become String, objects become key-sorted Structs.
// JSON null is rejected: every memory slot has a concrete value.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}

	return convertToValue(raw)
}

// convertToValue recursively converts a decoded JSON value to a Value.
func convertToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid value")
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return convertNumber(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			v, err := convertToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		s := make(Struct, 0, len(val))
		for _, k := range keys {
			v, err := convertToValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			s = append(s, Field{Name: k, Value: v})
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// convertNumber picks Int, Uint or Float for a JSON number literal.
func convertNumber(n json.Number) (Value, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", s, err)
		}
		return Float(f), nil
	}
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("number out of 64-bit range: %s", s)
	}
	return Uint(u), nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// SortedKeys returns map keys in RFC 8785 canonical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}
